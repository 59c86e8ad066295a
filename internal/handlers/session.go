package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hearing-go/internal/models"
	"hearing-go/internal/procedure"
	"hearing-go/internal/services"
	"hearing-go/views"
)

// Runner is the part of the orchestrator the input surface drives.
type Runner interface {
	Start(ctx context.Context, mode models.Mode, opts services.StartOptions) error
	Tutorial(ctx context.Context)
	Stop()
	Status() services.Status
	Results() (models.ResultsBundle, bool)
	SpeechAvailable(lang string) bool

	Respond() error
	Skip() error
	Probe(tile int) error
	Confirm(tile int) error
	DontKnow() error
	Answer(option int) error
	Replay() error
}

var _ Runner = (*services.Orchestrator)(nil)

// SessionHandler serves the mode menu, the test controls and their status.
type SessionHandler struct {
	log       *zap.Logger
	runner    Runner
	languages []string
	language  func() string
}

// NewSessionHandler takes the word list languages and the configured default language.
func NewSessionHandler(log *zap.Logger, runner Runner, lists map[string]models.WordList, language func() string) *SessionHandler {
	langs := make([]string, 0, len(lists))
	for l := range lists {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return &SessionHandler{log: log.Named("session"), runner: runner, languages: langs, language: language}
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// render writes component alone for htmx requests, inside the layout otherwise.
func render(c *gin.Context, title string, component templ.Component) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	var err error
	if isHTMX(c) {
		err = component.Render(c.Request.Context(), c.Writer)
	} else {
		err = views.Layout(title, c.GetString("csp_nonce")).Render(
			templ.WithChildren(c.Request.Context(), component),
			c.Writer,
		)
	}
	if err != nil {
		c.Error(err)
	}
}

func (h *SessionHandler) Home(c *gin.Context) {
	lang := c.Query("language")
	if lang == "" {
		lang = h.language()
	}
	available := h.runner.SpeechAvailable(lang)
	_, hasResults := h.runner.Results()
	render(c, "Hearing Test", views.Home(views.HomeData{
		Modes:           views.ModeMenu(available),
		Languages:       h.languages,
		Language:        lang,
		SpeechAvailable: available,
		HasResults:      hasResults,
	}))
}

// Start begins a run. A missing voice is not an error for the subject:
// the status reports it and offers to continue with consent.
func (h *SessionHandler) Start(c *gin.Context) {
	mode, err := models.ParseMode(c.PostForm("mode"))
	if err != nil {
		h.log.Warn("Rejected start", zap.String("mode", c.PostForm("mode")))
		c.String(http.StatusBadRequest, "Invalid test mode")
		return
	}
	consent, _ := strconv.ParseBool(c.PostForm("consent"))
	opts := services.StartOptions{
		Language:           c.PostForm("language"),
		AllowVoiceMismatch: consent,
	}

	// The run outlives this request.
	err = h.runner.Start(context.Background(), mode, opts)
	var mismatch *procedure.VoiceMismatchError
	switch {
	case err == nil, errors.As(err, &mismatch):
	default:
		h.log.Error("Failed to start test", zap.Error(err), zap.String("mode", string(mode)))
		c.String(http.StatusInternalServerError, "Could not start the test")
		return
	}
	h.writeStatus(c)
}

func (h *SessionHandler) Tutorial(c *gin.Context) {
	h.runner.Tutorial(context.Background())
	h.writeStatus(c)
}

func (h *SessionHandler) Stop(c *gin.Context) {
	h.runner.Stop()
	h.writeStatus(c)
}

func (h *SessionHandler) Status(c *gin.Context) {
	h.writeStatus(c)
}

// writeStatus answers htmx with the panel fragment and everyone else with JSON.
func (h *SessionHandler) writeStatus(c *gin.Context) {
	st := h.runner.Status()
	if isHTMX(c) || c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML {
		render(c, "Hearing Test", views.Panel(st))
		return
	}
	c.JSON(http.StatusOK, st)
}

// Input adapts a subject input to a handler.
func (h *SessionHandler) Input(name string, input func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.answer(c, name, input())
	}
}

// IndexedInput adapts a tile or option input; the index comes from the path parameter.
func (h *SessionHandler) IndexedInput(name, param string, input func(int) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		i, err := strconv.Atoi(c.Param(param))
		if err != nil || i < 0 {
			c.String(http.StatusBadRequest, "Invalid %s", param)
			return
		}
		h.answer(c, name, input(i))
	}
}

func (h *SessionHandler) answer(c *gin.Context, name string, err error) {
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, services.ErrNoActiveSession):
		h.log.Debug("Input without a test", zap.String("input", name))
		c.String(http.StatusConflict, "No test is waiting for this input")
	case errors.Is(err, services.ErrInputDropped):
		h.log.Warn("Input dropped", zap.String("input", name))
		c.String(http.StatusServiceUnavailable, "Busy, try again")
	default:
		h.log.Error("Input failed", zap.String("input", name), zap.Error(err))
		c.String(http.StatusInternalServerError, "Input failed")
	}
}
