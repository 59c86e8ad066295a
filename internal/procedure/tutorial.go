package procedure

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hearing-go/internal/audio"
	"hearing-go/internal/models"
)

const ProcedureTutorial = "tutorial"

// PracticeTone is one fixed tone of the practice run.
type PracticeTone struct {
	Frequency int
	Level     float64
	Ear       models.Ear
}

// PracticeTones are played in order during the practice run.
var PracticeTones = []PracticeTone{
	{Frequency: 1000, Level: 50, Ear: models.EarRight},
	{Frequency: 2000, Level: 45, Ear: models.EarLeft},
	{Frequency: 500, Level: 40, Ear: models.EarRight},
	{Frequency: 4000, Level: 50, Ear: models.EarLeft},
}

// TutorialResult counts the practice tones the subject reported.
type TutorialResult struct {
	Heard int `json:"heard"`
	Total int `json:"total"`
}

// Tutorial is a short practice run. It never produces thresholds.
type Tutorial struct {
	log        *zap.Logger
	device     TonePlayer
	timing     Timing
	onProgress func(Progress)
	events     chan toneEvent
}

func NewTutorial(log *zap.Logger, device TonePlayer, timing Timing, onProgress func(Progress)) *Tutorial {
	if timing == (Timing{}) {
		timing = DefaultTiming()
	}
	return &Tutorial{
		log:        log.Named(ProcedureTutorial),
		device:     device,
		timing:     timing,
		onProgress: onProgress,
		events:     make(chan toneEvent, eventQueue),
	}
}

func (t *Tutorial) Respond() bool { return post(t.events, toneHeard) }

func (t *Tutorial) Run(ctx context.Context) (TutorialResult, error) {
	defer t.device.Stop()

	res := TutorialResult{Total: len(PracticeTones)}
	for i, tone := range PracticeTones {
		if i > 0 {
			if err := wait(ctx, t.timing.TutorialGap); err != nil {
				return res, err
			}
		}
		drain(t.events)
		if err := t.device.Play(audio.Stimulus{
			FrequencyHz: float64(tone.Frequency),
			Level:       tone.Level,
			Channel:     tone.Ear,
			Duration:    t.timing.ToneDuration,
		}); err != nil {
			return res, fmt.Errorf("failed to present tone: %w", err)
		}
		t.publish(Progress{Phase: PhaseListening, Ear: tone.Ear, Frequency: tone.Frequency, Level: tone.Level, Trial: i + 1, Trials: len(PracticeTones)})

		heard, err := t.listen(ctx)
		t.device.Stop()
		if err != nil {
			return res, err
		}
		if heard {
			res.Heard++
		}
	}

	t.log.Info("Practice run complete", zap.Int("heard", res.Heard), zap.Int("total", res.Total))
	t.publish(Progress{Phase: PhaseDone, Trial: res.Total, Trials: res.Total})
	return res, nil
}

func (t *Tutorial) listen(ctx context.Context) (bool, error) {
	timer := time.NewTimer(t.timing.TutorialWindow)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
		return false, nil
	case <-t.events:
		return true, nil
	}
}

func (t *Tutorial) publish(pr Progress) {
	if t.onProgress == nil {
		return
	}
	pr.Procedure = ProcedureTutorial
	t.onProgress(pr)
}
