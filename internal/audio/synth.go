// Package audio renders and plays calibrated pure tones and spoken words.
package audio

import (
	"math"
	"time"

	"github.com/mjibson/go-dsp/window"

	"hearing-go/internal/models"
)

const (
	DefaultSampleRate = 44100
	DefaultFade       = 10 * time.Millisecond

	// bytes per stereo float32 frame
	frameSize = 8

	referenceGain = 0.00003
)

// Stimulus is one tone presentation.
type Stimulus struct {
	FrequencyHz float64
	Level       float64 // dB HL
	Channel     models.Ear
	Duration    time.Duration
}

// State is the playback state of an output.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StateClosed  State = "closed"
)

// LevelToGain maps a hearing level onto a linear amplitude.
// -10 dB HL is the reference gain; every 20 dB multiplies it by ten.
func LevelToGain(db float64) float64 {
	db = math.Max(models.MinLevel, math.Min(models.MaxLevel, db))
	return math.Min(1, referenceGain*math.Pow(10, (db-models.MinLevel)/20))
}

// ChannelGains splits a gain into left and right channel gains.
func ChannelGains(ch models.Ear, gain float64) (left, right float64) {
	switch ch {
	case models.EarLeft:
		return gain, 0
	case models.EarRight:
		return 0, gain
	case models.EarBoth:
		return gain, gain
	default:
		return 0, 0
	}
}

// Synth renders stimuli into interleaved float32 little-endian stereo PCM.
type Synth struct {
	SampleRate int
	Fade       time.Duration
}

func NewSynth(sampleRate int, fade time.Duration) Synth {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if fade < 0 {
		fade = 0
	}
	return Synth{SampleRate: sampleRate, Fade: fade}
}

func (s Synth) frames(d time.Duration) int {
	return int(d.Seconds() * float64(s.SampleRate))
}

// envelope returns raised-cosine ramps: the first half of a Hann window for
// the attack and the second half for the release.
func (s Synth) envelope(n int) (attack, release []float64) {
	fadeN := min(s.frames(s.Fade), n/2)
	if fadeN < 2 {
		return nil, nil
	}
	w := window.Hann(2 * fadeN)
	return w[:fadeN], w[fadeN:]
}

// Render synthesizes a faded sine at the stimulus level, panned to its channel.
func (s Synth) Render(st Stimulus) []byte {
	n := s.frames(st.Duration)
	if n <= 0 {
		return nil
	}
	left, right := ChannelGains(st.Channel, LevelToGain(st.Level))
	attack, release := s.envelope(n)
	releaseStart := n - len(release)

	buf := make([]byte, n*frameSize)
	step := 2 * math.Pi * st.FrequencyHz / float64(s.SampleRate)
	for i := 0; i < n; i++ {
		env := 1.0
		switch {
		case i < len(attack):
			env = attack[i]
		case i >= releaseStart:
			env = release[i-releaseStart]
		}
		v := math.Sin(step*float64(i)) * env
		putStereoF32LR(buf, i, v*left, v*right)
	}
	return buf
}

// Frames interleaves mono samples into stereo PCM with the given channel gains.
func Frames(samples []float64, left, right float64) []byte {
	buf := make([]byte, len(samples)*frameSize)
	for i, v := range samples {
		putStereoF32LR(buf, i, clampSample(v*left), clampSample(v*right))
	}
	return buf
}

// Duration returns the play time of a stereo PCM buffer.
func (s Synth) Duration(pcm []byte) time.Duration {
	frames := len(pcm) / frameSize
	return time.Duration(float64(frames) / float64(s.SampleRate) * float64(time.Second))
}

func clampSample(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// putStereoF32LR writes independent left/right samples in [-1,1] at frame i.
func putStereoF32LR(buf []byte, i int, left, right float64) {
	lv := math.Float32bits(float32(left))
	rv := math.Float32bits(float32(right))
	buf[i*8] = byte(lv)
	buf[i*8+1] = byte(lv >> 8)
	buf[i*8+2] = byte(lv >> 16)
	buf[i*8+3] = byte(lv >> 24)
	buf[i*8+4] = byte(rv)
	buf[i*8+5] = byte(rv >> 8)
	buf[i*8+6] = byte(rv >> 16)
	buf[i*8+7] = byte(rv >> 24)
}
