package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"hearing-go/internal/metrics"
	"hearing-go/internal/models"
	"hearing-go/internal/procedure"
)

var (
	ErrNoActiveSession = errors.New("no active test accepts this input")
	ErrInputDropped    = errors.New("input dropped, test is busy")
)

// State of the orchestrator as shown to the subject.
type State string

const (
	StateIdle          State = "idle"
	StateRunning       State = "running"
	StateComplete      State = "complete"
	StateStopped       State = "stopped"
	StateFailed        State = "failed"
	StateVoiceMismatch State = "voice-mismatch"
)

// Steps of a plan.
const (
	StepPureTone = procedure.ProcedurePureTone
	StepSpeech   = procedure.ProcedureSpeech
	StepGame     = procedure.ProcedureGame
	StepTutorial = procedure.ProcedureTutorial
)

// Dependencies are the collaborators shared by every run.
type Dependencies struct {
	Device    procedure.TonePlayer
	Speaker   procedure.WordSpeaker
	Scenarios []models.Scenario
	WordLists map[string]models.WordList
	// Language is used when StartOptions leaves it empty.
	Language string
	// Timing is read at the start of each run; nil means the defaults.
	Timing func() procedure.Timing
	// NewRand returns the randomness for one run; nil seeds from the clock.
	NewRand    func() procedure.Rand
	OnComplete func(models.ResultsBundle)
}

// StartOptions are per-run choices made by the subject.
type StartOptions struct {
	Language           string
	AllowVoiceMismatch bool
}

// Status is a snapshot for display.
type Status struct {
	State    State                     `json:"state"`
	Mode     models.Mode               `json:"mode,omitempty"`
	Step     string                    `json:"step,omitempty"`
	Steps    []string                  `json:"steps,omitempty"`
	Progress *procedure.Progress       `json:"progress,omitempty"`
	Language string                    `json:"language,omitempty"`
	Error    string                    `json:"error,omitempty"`
	Tutorial *procedure.TutorialResult `json:"tutorial,omitempty"`
}

// Orchestrator runs the procedures of a mode one after another and collects
// their results. It is the only writer of the results bundle.
type Orchestrator struct {
	log  *zap.Logger
	deps Dependencies

	// lifecycle serializes Start, Tutorial and Stop so a run is always
	// torn down before the next one is launched.
	lifecycle sync.Mutex

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	active   any
	status   Status
	results  models.ResultsBundle
	complete bool
}

func NewOrchestrator(log *zap.Logger, deps Dependencies) *Orchestrator {
	if deps.Timing == nil {
		deps.Timing = procedure.DefaultTiming
	}
	return &Orchestrator{
		log:    log.Named("orchestrator"),
		deps:   deps,
		status: Status{State: StateIdle},
	}
}

// plan lists the procedures a mode runs, in order.
func plan(mode models.Mode) []string {
	switch mode {
	case models.ModePureTone:
		return []string{StepPureTone}
	case models.ModeSpeech:
		return []string{StepSpeech}
	case models.ModeBoth:
		return []string{StepPureTone, StepSpeech}
	case models.ModeGame:
		return []string{StepGame}
	}
	panic(fmt.Sprintf("unknown test mode %q", mode))
}

// SpeechAvailable reports whether the speech test can be spoken in lang.
func (o *Orchestrator) SpeechAvailable(lang string) bool {
	if o.deps.Speaker == nil {
		return false
	}
	if lang == "" {
		lang = o.deps.Language
	}
	wl, ok := o.deps.WordLists[lang]
	if !ok {
		return false
	}
	voice := wl.Voice
	if voice == "" {
		voice = lang
	}
	return o.deps.Speaker.Supports(voice)
}

// Start tears down any previous run and starts mode in the background.
// A missing speech voice without consent is reported as *procedure.VoiceMismatchError.
func (o *Orchestrator) Start(ctx context.Context, mode models.Mode, opts StartOptions) error {
	steps := plan(mode)
	if opts.Language == "" {
		opts.Language = o.deps.Language
	}

	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()
	o.stop()

	if mode.NeedsSpeech() && !opts.AllowVoiceMismatch && !o.SpeechAvailable(opts.Language) {
		err := &procedure.VoiceMismatchError{Language: opts.Language, Voice: o.voice(opts.Language)}
		o.mu.Lock()
		o.status = Status{State: StateVoiceMismatch, Mode: mode, Steps: steps, Language: opts.Language, Error: err.Error()}
		o.mu.Unlock()
		o.log.Warn("Speech voice unavailable", zap.String("mode", string(mode)), zap.String("language", opts.Language))
		return err
	}

	o.launch(ctx, Status{State: StateRunning, Mode: mode, Steps: steps, Language: opts.Language}, func(ctx context.Context) {
		o.runPlan(ctx, mode, steps, opts)
	})
	o.log.Info("Test started", zap.String("mode", string(mode)), zap.Strings("steps", steps))
	return nil
}

// Tutorial runs the practice tones in the background. It never touches results.
func (o *Orchestrator) Tutorial(ctx context.Context) {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()
	o.stop()
	o.launch(ctx, Status{State: StateRunning, Step: StepTutorial, Steps: []string{StepTutorial}}, func(ctx context.Context) {
		tut := procedure.NewTutorial(o.log, o.deps.Device, o.deps.Timing(), o.onProgress)
		o.setActive(StepTutorial, tut)
		res, err := tut.Run(ctx)

		o.mu.Lock()
		defer o.mu.Unlock()
		o.active = nil
		if err != nil {
			o.endLocked(err)
			return
		}
		o.status.State = StateIdle
		o.status.Tutorial = &res
	})
}

func (o *Orchestrator) launch(ctx context.Context, initial Status, body func(ctx context.Context)) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	o.mu.Lock()
	o.cancel = cancel
	o.done = done
	o.status = initial
	o.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		body(runCtx)
	}()
}

func (o *Orchestrator) runPlan(ctx context.Context, mode models.Mode, steps []string, opts StartOptions) {
	bundle := models.ResultsBundle{Mode: mode}
	timing := o.deps.Timing()

	for _, step := range steps {
		var err error
		switch step {
		case StepPureTone:
			var responses []models.Response
			pt := procedure.NewPureTone(o.log, o.deps.Device, procedure.PureToneOptions{
				Timing:     timing,
				Rand:       o.newRand(),
				OnProgress: o.onProgress,
				OnResponse: func(r models.Response) { responses = append(responses, r) },
			})
			o.setActive(step, pt)
			var res models.ToneResults
			if res, err = pt.Run(ctx); err == nil {
				o.record(bundle.SetPureTone(res))
				o.record(bundle.SetReliability(metrics.Summarize(responses)))
			}

		case StepGame:
			g := procedure.NewForcedChoice(o.log, o.deps.Device, procedure.ForcedChoiceOptions{
				Timing:     timing,
				Rand:       o.newRand(),
				Scenarios:  o.deps.Scenarios,
				OnProgress: o.onProgress,
			})
			o.setActive(step, g)
			var res models.GameResults
			if res, err = g.Run(ctx); err == nil {
				o.record(bundle.SetGame(res))
			}

		case StepSpeech:
			s := procedure.NewSpeech(o.log, o.deps.Speaker, procedure.SpeechOptions{
				Timing:             timing,
				Rand:               o.newRand(),
				Language:           opts.Language,
				WordLists:          o.deps.WordLists,
				AllowVoiceMismatch: opts.AllowVoiceMismatch,
				OnProgress:         o.onProgress,
			})
			o.setActive(step, s)
			var res models.SpeechResults
			if res, err = s.Run(ctx); err == nil {
				o.record(bundle.SetSpeech(res))
			}
		}

		if err != nil {
			o.mu.Lock()
			o.active = nil
			o.endLocked(err)
			o.mu.Unlock()
			return
		}
		o.log.Info("Step complete", zap.String("step", step))
	}

	o.mu.Lock()
	o.active = nil
	o.results = bundle
	o.complete = true
	o.status.State = StateComplete
	o.status.Progress = nil
	o.mu.Unlock()

	o.log.Info("All tests complete", zap.String("mode", string(mode)))
	if o.deps.OnComplete != nil {
		o.deps.OnComplete(bundle)
	}
}

// record checks a bundle write. A second write means a step ran twice.
func (o *Orchestrator) record(err error) {
	if err != nil {
		o.log.DPanic("Results written twice", zap.Error(err))
	}
}

// endLocked sets the terminal state of a failed or interrupted run.
func (o *Orchestrator) endLocked(err error) {
	var mismatch *procedure.VoiceMismatchError
	switch {
	case errors.Is(err, context.Canceled):
		o.status.State = StateStopped
	case errors.As(err, &mismatch):
		o.status.State = StateVoiceMismatch
		o.status.Error = err.Error()
	default:
		o.status.State = StateFailed
		o.status.Error = err.Error()
		o.log.Error("Test failed", zap.String("step", o.status.Step), zap.Error(err))
	}
}

func (o *Orchestrator) setActive(step string, controller any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = controller
	o.status.Step = step
	o.status.Progress = nil
}

func (o *Orchestrator) onProgress(p procedure.Progress) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status.Progress = &p
}

func (o *Orchestrator) newRand() procedure.Rand {
	if o.deps.NewRand == nil {
		return nil
	}
	return o.deps.NewRand()
}

func (o *Orchestrator) voice(lang string) string {
	if wl, ok := o.deps.WordLists[lang]; ok && wl.Voice != "" {
		return wl.Voice
	}
	return lang
}

// Stop cancels the current run and waits for it to wind down. It is safe to
// call when nothing is running.
func (o *Orchestrator) Stop() {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()
	o.stop()
}

// stop requires o.lifecycle.
func (o *Orchestrator) stop() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.cancel, o.done = nil, nil
	o.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if o.deps.Device != nil {
		o.deps.Device.Stop()
	}
	o.log.Info("Test stopped")
}

// Wait blocks until the current run ends.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.status
	if s.Progress != nil {
		p := *s.Progress
		s.Progress = &p
	}
	return s
}

// Results returns the bundle of the last completed run.
func (o *Orchestrator) Results() (models.ResultsBundle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.results, o.complete
}

func activeAs[T any](o *Orchestrator) (T, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.active.(T)
	if !ok {
		var zero T
		return zero, ErrNoActiveSession
	}
	return c, nil
}

func accepted(ok bool) error {
	if !ok {
		return ErrInputDropped
	}
	return nil
}

// Respond reports a heard tone to the pure-tone test or the practice run.
func (o *Orchestrator) Respond() error {
	c, err := activeAs[interface{ Respond() bool }](o)
	if err != nil {
		return err
	}
	return accepted(c.Respond())
}

func (o *Orchestrator) Skip() error {
	c, err := activeAs[*procedure.PureTone](o)
	if err != nil {
		return err
	}
	return accepted(c.Skip())
}

func (o *Orchestrator) Probe(tile int) error {
	c, err := activeAs[*procedure.ForcedChoice](o)
	if err != nil {
		return err
	}
	return accepted(c.Probe(tile))
}

func (o *Orchestrator) Confirm(tile int) error {
	c, err := activeAs[*procedure.ForcedChoice](o)
	if err != nil {
		return err
	}
	return accepted(c.Confirm(tile))
}

func (o *Orchestrator) DontKnow() error {
	c, err := activeAs[*procedure.ForcedChoice](o)
	if err != nil {
		return err
	}
	return accepted(c.DontKnow())
}

func (o *Orchestrator) Answer(option int) error {
	c, err := activeAs[*procedure.Speech](o)
	if err != nil {
		return err
	}
	return accepted(c.Answer(option))
}

func (o *Orchestrator) Replay() error {
	c, err := activeAs[*procedure.Speech](o)
	if err != nil {
		return err
	}
	return accepted(c.Replay())
}
