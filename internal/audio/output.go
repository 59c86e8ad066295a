package audio

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("audio output closed")

// Device is what the test procedures need from an output.
type Device interface {
	Play(st Stimulus) error
	PlayFrames(pcm []byte) (time.Duration, error)
	Stop()
	State() State
	Close() error
}

var _ Device = (*Output)(nil)
