package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hearing-go/internal/export"
	"hearing-go/internal/models"
	"hearing-go/views"
)

type ResultsHandler struct {
	log    *zap.Logger
	runner Runner
	now    func() time.Time
}

func NewResultsHandler(log *zap.Logger, runner Runner) *ResultsHandler {
	return &ResultsHandler{log: log.Named("results"), runner: runner, now: time.Now}
}

// audiogramTitle names the tone test the bundle's audiogram comes from.
func audiogramTitle(b models.ResultsBundle) string {
	if b.PureTone == nil && b.Game != nil {
		return "Game Mode Audiogram"
	}
	return "Pure Tone Audiogram"
}

func (h *ResultsHandler) ShowResults(c *gin.Context) {
	bundle, ok := h.runner.Results()
	if !ok {
		render(c, "Results", views.Message("No completed test yet."))
		return
	}

	data := views.ResultsData{Nonce: c.GetString("csp_nonce")}
	add := func(id string, chart interface{ JSON() map[string]interface{} }, invertY bool) bool {
		options, err := chartOptions(chart, invertY)
		if err != nil {
			h.log.Error("Failed to build chart", zap.String("chart", id), zap.Error(err))
			c.String(http.StatusInternalServerError, "Failed to load results")
			return false
		}
		data.Charts = append(data.Charts, views.ChartData{ID: id, Options: options})
		return true
	}

	if tone, ok := bundle.Audiogram(); ok {
		if !add("audiogram", generateAudiogram(tone, audiogramTitle(bundle)), true) {
			return
		}
	}
	if bundle.Game != nil && bundle.Game.Matrix != nil {
		for _, ear := range models.TestEars {
			if !add("matrix-"+string(ear), generateMatrix(bundle.Game.Matrix, ear), false) {
				return
			}
		}
	}
	if bundle.Speech != nil {
		if !add("speech", generateSpeechChart(*bundle.Speech), false) {
			return
		}
		data.SpeechThreshold = percentLabel(bundle.Speech.Threshold)
	}

	if rel := bundle.Reliability; rel != nil && rel.Trials > 0 {
		data.Reliability = fmt.Sprintf("You answered %d of %d tones, average reaction time %d ms, %d presses with no tone.",
			rel.Detections, rel.Trials, rel.MeanReactionTime.Milliseconds(), rel.FalseAlarms)
	}

	render(c, "Results", views.Results(data))
}

func (h *ResultsHandler) ExportCSV(c *gin.Context) {
	bundle, _ := h.runner.Results()
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, bundle); err != nil {
		if errors.Is(err, export.ErrNoResults) {
			c.String(http.StatusNotFound, "No results to export")
			return
		}
		h.log.Error("Failed to export CSV", zap.Error(err))
		c.String(http.StatusInternalServerError, "Export failed")
		return
	}
	h.download(c, "csv", "text/csv; charset=utf-8", buf.Bytes())
}

func (h *ResultsHandler) ExportPNG(c *gin.Context) {
	bundle, _ := h.runner.Results()
	tone, ok := bundle.Audiogram()
	if !ok {
		c.String(http.StatusNotFound, "No audiogram to export")
		return
	}
	var buf bytes.Buffer
	if err := export.WriteAudiogramPNG(&buf, audiogramTitle(bundle), tone); err != nil {
		h.log.Error("Failed to export audiogram", zap.Error(err))
		c.String(http.StatusInternalServerError, "Export failed")
		return
	}
	h.download(c, "png", "image/png", buf.Bytes())
}

func (h *ResultsHandler) download(c *gin.Context, ext, contentType string, body []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(h.now(), ext)+`"`)
	c.Data(http.StatusOK, contentType, body)
}
