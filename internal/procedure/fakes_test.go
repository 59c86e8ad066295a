package procedure

import (
	"context"
	"sync"
	"time"

	"hearing-go/internal/audio"
)

// fakeDevice records presentations and lets a test play the subject.
type fakeDevice struct {
	mu     sync.Mutex
	played []audio.Stimulus
	stops  int
	onPlay func(st audio.Stimulus, n int)
}

func (d *fakeDevice) Play(st audio.Stimulus) error {
	d.mu.Lock()
	d.played = append(d.played, st)
	n := len(d.played)
	onPlay := d.onPlay
	d.mu.Unlock()
	if onPlay != nil {
		onPlay(st, n)
	}
	return nil
}

func (d *fakeDevice) Stop() {
	d.mu.Lock()
	d.stops++
	d.mu.Unlock()
}

func (d *fakeDevice) plays() []audio.Stimulus {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]audio.Stimulus, len(d.played))
	copy(out, d.played)
	return out
}

func (d *fakeDevice) stopCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

type spokenWord struct {
	word   string
	voice  string
	volume float64
}

type fakeSpeaker struct {
	mu       sync.Mutex
	supports bool
	spoken   []spokenWord
}

func (s *fakeSpeaker) Speak(ctx context.Context, word, voice string, volume float64) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, spokenWord{word: word, voice: voice, volume: volume})
	s.mu.Unlock()
	return ctx.Err()
}

func (s *fakeSpeaker) Supports(string) bool { return s.supports }

func (s *fakeSpeaker) Stop() {}

func (s *fakeSpeaker) words() []spokenWord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]spokenWord, len(s.spoken))
	copy(out, s.spoken)
	return out
}

// fixedRand always hides the tone behind tile 0 and never reorders.
type fixedRand struct {
	f float64
}

func (r fixedRand) Float64() float64            { return r.f }
func (r fixedRand) Intn(int) int                { return 0 }
func (r fixedRand) Shuffle(int, func(i, j int)) {}

func fastTiming() Timing {
	return Timing{
		ToneDuration:   5 * time.Millisecond,
		ResponseWindow: 3 * time.Millisecond,
		MinGap:         0,
		MaxGap:         0,
		PairPause:      0,
		FeedbackPause:  time.Millisecond,
		DecoyPadding:   time.Millisecond,
		WordDelay:      0,
		AnswerPause:    0,
		TutorialWindow: 3 * time.Millisecond,
		TutorialGap:    0,
	}
}
