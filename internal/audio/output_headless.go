//go:build headless

package audio

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Output is a silent stand-in for the sound card. It keeps the same timing
// so procedures behave as they would with real playback.
type Output struct {
	log    *zap.Logger
	synth  Synth
	mu     sync.Mutex
	until  time.Time
	closed bool
}

func NewOutput(log *zap.Logger, sampleRate int, fade time.Duration) (*Output, error) {
	log.Info("Audio output is headless")
	return &Output{log: log, synth: NewSynth(sampleRate, fade)}, nil
}

func (o *Output) Play(st Stimulus) error {
	_, err := o.start(st.Duration)
	return err
}

func (o *Output) PlayFrames(pcm []byte) (time.Duration, error) {
	return o.start(o.synth.Duration(pcm))
}

func (o *Output) start(d time.Duration) (time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return 0, ErrClosed
	}
	o.until = time.Now().Add(d)
	return d, nil
}

func (o *Output) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.until = time.Time{}
}

func (o *Output) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.closed:
		return StateClosed
	case time.Now().Before(o.until):
		return StatePlaying
	default:
		return StateIdle
	}
}

func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.until = time.Time{}
	o.closed = true
	return nil
}
