package procedure

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hearing-go/internal/audio"
	"hearing-go/internal/models"
	"hearing-go/internal/staircase"
)

const ProcedurePureTone = "puretone"

type toneEvent int

const (
	toneHeard toneEvent = iota
	toneSkip
)

// PureToneOptions configures a pure-tone test. Zero values take the defaults.
type PureToneOptions struct {
	Timing      Timing
	Rand        Rand
	Ears        []models.Ear
	Frequencies []int
	Staircase   *staircase.Config
	OnProgress  func(Progress)
	OnResponse  func(models.Response)
}

// PureTone runs the clinical Hughson-Westlake test over every (ear, frequency) pair.
type PureTone struct {
	log    *zap.Logger
	device TonePlayer
	opts   PureToneOptions
	cfg    staircase.Config
	events chan toneEvent
	nextID atomic.Uint64
	start  time.Time
}

func NewPureTone(log *zap.Logger, device TonePlayer, opts PureToneOptions) *PureTone {
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming()
	}
	if opts.Rand == nil {
		opts.Rand = newRand()
	}
	if len(opts.Ears) == 0 {
		opts.Ears = models.TestEars
	}
	if len(opts.Frequencies) == 0 {
		opts.Frequencies = models.StandardFrequencies
	}
	cfg := staircase.HughsonWestlake()
	if opts.Staircase != nil {
		cfg = *opts.Staircase
	}
	return &PureTone{
		log:    log.Named(ProcedurePureTone),
		device: device,
		opts:   opts,
		cfg:    cfg,
		events: make(chan toneEvent, eventQueue),
	}
}

// Respond reports that the subject heard a tone. Responses outside a
// response window are ignored.
func (p *PureTone) Respond() bool { return post(p.events, toneHeard) }

// Skip abandons the current pair; it is recorded as skipped.
func (p *PureTone) Skip() bool { return post(p.events, toneSkip) }

// Run presents trials until every pair has a threshold or ctx is done.
func (p *PureTone) Run(ctx context.Context) (models.ToneResults, error) {
	defer p.device.Stop()

	p.start = time.Now()
	results := models.NewToneResults(p.start)
	pairs := testOrder(p.opts.Ears, p.opts.Frequencies)
	p.log.Info("Starting pure tone test", zap.Int("pairs", len(pairs)))

	for i, pr := range pairs {
		var skipped bool
		if i > 0 {
			p.publish(Progress{Phase: PhasePause, Ear: pr.ear, Frequency: pr.frequency, Pair: i, Pairs: len(pairs)})
			// the pause announces the next pair, so a skip here skips it
			var err error
			if skipped, err = p.between(ctx, p.opts.Timing.PairPause); err != nil {
				return results, err
			}
		}

		var th models.Threshold
		if skipped {
			th = p.skipped(pr)
		} else {
			var err error
			if th, err = p.runPair(ctx, pr, i, len(pairs)); err != nil {
				return results, err
			}
		}
		if err := results.Set(pr.ear, pr.frequency, th); err != nil {
			return results, err
		}
		p.log.Info("Threshold recorded",
			zap.String("ear", string(pr.ear)),
			zap.Int("frequency", pr.frequency),
			zap.String("threshold", th.String()))
	}

	p.publish(Progress{Phase: PhaseDone, Pair: len(pairs), Pairs: len(pairs)})
	return results, nil
}

func (p *PureTone) runPair(ctx context.Context, pr pair, index, total int) (models.Threshold, error) {
	sc := staircase.New(p.cfg)
	drain(p.events)

	for trial := 1; ; trial++ {
		progress := Progress{
			Ear:       pr.ear,
			Frequency: pr.frequency,
			Level:     float64(sc.Level()),
			Pair:      index,
			Pairs:     total,
			Trial:     trial,
		}

		progress.Phase = PhaseWaiting
		p.publish(progress)
		skipped, err := p.between(ctx, p.opts.Timing.gap(p.opts.Rand))
		if err != nil {
			return models.Threshold{}, err
		}
		if skipped {
			return p.skipped(pr), nil
		}

		t := models.Trial{
			Frequency:  pr.frequency,
			Ear:        pr.ear,
			Level:      float64(sc.Level()),
			StimulusID: p.nextID.Add(1),
		}
		if err := p.device.Play(audio.Stimulus{
			FrequencyHz: float64(t.Frequency),
			Level:       t.Level,
			Channel:     t.Ear,
			Duration:    p.opts.Timing.ToneDuration,
		}); err != nil {
			return models.Threshold{}, fmt.Errorf("failed to present tone: %w", err)
		}

		progress.Phase = PhaseListening
		p.publish(progress)
		heard, skipped, latency, err := p.listen(ctx)
		p.device.Stop()
		if err != nil {
			return models.Threshold{}, err
		}
		if skipped {
			return p.skipped(pr), nil
		}

		resp := models.Response{Trial: t, Heard: heard, At: time.Since(p.start)}
		if heard {
			resp.ReactionTime = latency
		}
		p.record(resp)
		if out := sc.Respond(heard); out.Done {
			return models.LevelThreshold(out.Threshold), nil
		}
	}
}

// between waits out an inter-trial gap. A skip ends it early; heard events
// arriving here belong to no trial and are recorded as false alarms.
func (p *PureTone) between(ctx context.Context, d time.Duration) (bool, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			return false, nil
		case ev := <-p.events:
			if ev == toneSkip {
				return true, nil
			}
			p.record(models.Response{Heard: true, FalseAlarm: true, At: time.Since(p.start)})
		}
	}
}

// listen waits for a response within the response window. Silence means not heard.
// latency is measured from the start of the window.
func (p *PureTone) listen(ctx context.Context) (heard, skipped bool, latency time.Duration, err error) {
	start := time.Now()
	timer := time.NewTimer(p.opts.Timing.ResponseWindow)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, false, 0, ctx.Err()
	case <-timer.C:
		return false, false, 0, nil
	case ev := <-p.events:
		return ev == toneHeard, ev == toneSkip, time.Since(start), nil
	}
}

func (p *PureTone) skipped(pr pair) models.Threshold {
	p.device.Stop()
	p.log.Info("Pair skipped", zap.String("ear", string(pr.ear)), zap.Int("frequency", pr.frequency))
	return models.SkippedThreshold()
}

func (p *PureTone) record(r models.Response) {
	p.log.Debug("Response",
		zap.Uint64("stimulus", r.Trial.StimulusID),
		zap.Float64("level", r.Trial.Level),
		zap.Bool("heard", r.Heard),
		zap.Bool("falseAlarm", r.FalseAlarm),
		zap.Duration("reactionTime", r.ReactionTime))
	if p.opts.OnResponse != nil {
		p.opts.OnResponse(r)
	}
}

func (p *PureTone) publish(pr Progress) {
	if p.opts.OnProgress == nil {
		return
	}
	pr.Procedure = ProcedurePureTone
	p.opts.OnProgress(pr)
}
