//go:build !headless

package audio

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// Output plays stimuli on the default sound card. At most one sound is
// active; starting a new one stops the previous.
type Output struct {
	log    *zap.Logger
	synth  Synth
	ctx    *oto.Context
	mu     sync.Mutex
	player *oto.Player
	closed bool
}

// NewOutput opens the audio device. It blocks until the device is ready.
func NewOutput(log *zap.Logger, sampleRate int, fade time.Duration) (*Output, error) {
	synth := NewSynth(sampleRate, fade)
	op := &oto.NewContextOptions{
		SampleRate:   synth.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio device: %w", err)
	}
	<-ready
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("audio device failed: %w", err)
	}

	log.Info("Audio output ready", zap.Int("sample_rate", synth.SampleRate), zap.Duration("fade", synth.Fade))
	return &Output{log: log, synth: synth, ctx: ctx}, nil
}

// Play starts a tone and returns immediately.
func (o *Output) Play(st Stimulus) error {
	_, err := o.start(o.synth.Render(st))
	if err == nil {
		o.log.Debug("Playing tone",
			zap.Float64("frequency", st.FrequencyHz),
			zap.Float64("level", st.Level),
			zap.String("channel", string(st.Channel)))
	}
	return err
}

// PlayFrames starts prerendered stereo float32 PCM and returns its length.
func (o *Output) PlayFrames(pcm []byte) (time.Duration, error) {
	return o.start(pcm)
}

func (o *Output) start(pcm []byte) (time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return 0, ErrClosed
	}
	o.stopLocked()
	if len(pcm) == 0 {
		return 0, nil
	}
	o.player = o.ctx.NewPlayer(bytes.NewReader(pcm))
	o.player.Play()
	return o.synth.Duration(pcm), nil
}

// Stop silences the current sound. It is safe to call repeatedly.
func (o *Output) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

func (o *Output) stopLocked() {
	if o.player == nil {
		return
	}
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		o.log.Warn("Failed to close player", zap.Error(err))
	}
	o.player = nil
}

func (o *Output) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.closed:
		return StateClosed
	case o.player != nil && o.player.IsPlaying():
		return StatePlaying
	default:
		return StateIdle
	}
}

// Close stops playback. The oto context lives for the rest of the process.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopLocked()
	o.closed = true
	return nil
}
