// Package procedure runs the interactive test procedures: the clinical
// pure-tone staircase, the forced-choice game, the speech reception test and
// the practice run.
//
// Every controller keeps its state inside the goroutine running Run. Subject
// input is delivered through methods that post events to that goroutine and
// never block.
package procedure

import (
	"context"
	"math/rand"
	"time"

	"hearing-go/internal/audio"
	"hearing-go/internal/models"
)

// Rand is the source of randomness for gaps, shuffles and draws.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

func newRand() Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// TonePlayer presents tones.
type TonePlayer interface {
	Play(st audio.Stimulus) error
	Stop()
}

// WordSpeaker speaks words at a volume in [0,1].
type WordSpeaker interface {
	Speak(ctx context.Context, word, voice string, volume float64) error
	Supports(voice string) bool
	Stop()
}

// Timing holds every delay used by the procedures.
type Timing struct {
	ToneDuration   time.Duration
	ResponseWindow time.Duration
	MinGap         time.Duration
	MaxGap         time.Duration
	PairPause      time.Duration
	FeedbackPause  time.Duration
	DecoyPadding   time.Duration
	WordDelay      time.Duration
	AnswerPause    time.Duration
	TutorialWindow time.Duration
	TutorialGap    time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		ToneDuration:   1500 * time.Millisecond,
		ResponseWindow: 3500 * time.Millisecond,
		MinGap:         1 * time.Second,
		MaxGap:         3 * time.Second,
		PairPause:      2 * time.Second,
		FeedbackPause:  1500 * time.Millisecond,
		DecoyPadding:   100 * time.Millisecond,
		WordDelay:      1 * time.Second,
		AnswerPause:    800 * time.Millisecond,
		TutorialWindow: 4 * time.Second,
		TutorialGap:    1500 * time.Millisecond,
	}
}

// gap draws an inter-trial delay uniformly from [MinGap, MaxGap).
func (t Timing) gap(rng Rand) time.Duration {
	if t.MaxGap <= t.MinGap {
		return t.MinGap
	}
	return t.MinGap + time.Duration(rng.Float64()*float64(t.MaxGap-t.MinGap))
}

// probeLength is how long a probe keeps the tiles busy, tone or decoy.
func (t Timing) probeLength() time.Duration {
	return t.ToneDuration + t.DecoyPadding
}

// Progress is a snapshot of a running procedure for display.
type Progress struct {
	Procedure string     `json:"procedure"`
	Phase     string     `json:"phase"`
	Ear       models.Ear `json:"ear,omitempty"`
	Frequency int        `json:"frequency,omitempty"`
	Level     float64    `json:"level"`
	Pair      int        `json:"pair"`
	Pairs     int        `json:"pairs"`
	Trial     int        `json:"trial"`
	Trials    int        `json:"trials,omitempty"`
	Feedback  string     `json:"feedback,omitempty"`

	Scenario string                  `json:"scenario,omitempty"`
	Prompt   string                  `json:"prompt,omitempty"`
	Tiles    []models.ScenarioOption `json:"tiles,omitempty"`
	Matrix   *models.TestMatrix      `json:"matrix,omitempty"`

	Options []string `json:"options,omitempty"`
}

// Phases reported in Progress.
const (
	PhaseWaiting   = "waiting"
	PhaseListening = "listening"
	PhaseChoosing  = "choosing"
	PhaseProbing   = "probing"
	PhaseFeedback  = "feedback"
	PhaseSpeaking  = "speaking"
	PhaseAnswering = "answering"
	PhasePause     = "pause"
	PhaseDone      = "done"
)

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// pair is one (ear, frequency) combination in test order.
type pair struct {
	ear       models.Ear
	frequency int
}

// testOrder finishes every frequency of one ear before the next ear starts.
func testOrder(ears []models.Ear, frequencies []int) []pair {
	out := make([]pair, 0, len(ears)*len(frequencies))
	for _, ear := range ears {
		for _, f := range frequencies {
			out = append(out, pair{ear: ear, frequency: f})
		}
	}
	return out
}

// post delivers an event without blocking; it is dropped when the queue is full.
func post[E any](ch chan E, ev E) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

// drain discards queued events.
func drain[E any](ch chan E) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

const eventQueue = 16
