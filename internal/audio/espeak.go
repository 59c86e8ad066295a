package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/transforms"
	"github.com/go-audio/wav"
	"go.uber.org/zap"
)

const DefaultEspeakBinary = "espeak-ng"

var ErrInvalidWAV = errors.New("invalid WAV file")

// FramePlayer plays prerendered PCM.
type FramePlayer interface {
	PlayFrames(pcm []byte) (time.Duration, error)
	Stop()
}

// EspeakSpeaker speaks words with the espeak-ng synthesizer and plays them
// through a FramePlayer at a chosen volume.
type EspeakSpeaker struct {
	log        *zap.Logger
	out        FramePlayer
	binary     string
	sampleRate int

	mu     sync.Mutex
	voices map[string]bool
}

func NewEspeakSpeaker(log *zap.Logger, out FramePlayer, binary string, sampleRate int) *EspeakSpeaker {
	if binary == "" {
		binary = DefaultEspeakBinary
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &EspeakSpeaker{
		log:        log,
		out:        out,
		binary:     binary,
		sampleRate: sampleRate,
		voices:     make(map[string]bool),
	}
}

// Supports reports whether espeak-ng has a voice for lang. Results are cached.
func (s *EspeakSpeaker) Supports(lang string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, cached := s.voices[lang]; cached {
		return ok
	}
	out, err := exec.Command(s.binary, "--voices="+lang).Output()
	if err != nil {
		s.log.Warn("Failed to list voices", zap.String("lang", lang), zap.Error(err))
		s.voices[lang] = false
		return false
	}
	ok := hasVoice(out)
	s.voices[lang] = ok
	return ok
}

// hasVoice reports whether a voice listing holds any entry below its header.
func hasVoice(listing []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(listing))
	lines := 0
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			lines++
		}
	}
	return lines > 1
}

// Speak synthesizes word and plays it at volume in [0,1]. It blocks until the
// word has been played or ctx is done.
func (s *EspeakSpeaker) Speak(ctx context.Context, word, lang string, volume float64) error {
	samples, err := s.synthesize(ctx, word, lang)
	if err != nil {
		return err
	}
	d, err := s.out.PlayFrames(Frames(samples, volume, volume))
	if err != nil {
		return fmt.Errorf("failed to play word: %w", err)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		s.out.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *EspeakSpeaker) Stop() {
	s.out.Stop()
}

func (s *EspeakSpeaker) synthesize(ctx context.Context, word, lang string) ([]float64, error) {
	tmp, err := os.CreateTemp("", "hearing-word-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	// Without a voice for lang espeak-ng refuses -v, so the default voice speaks.
	args := []string{"-w", path, word}
	if s.Supports(lang) {
		args = append([]string{"-v", lang}, args...)
	} else {
		s.log.Debug("Speaking with the default voice", zap.String("lang", lang))
	}
	cmd := exec.CommandContext(ctx, s.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("espeak-ng failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open synthesized word: %w", err)
	}
	defer f.Close()
	return decodeWAV(f, s.sampleRate)
}

// decodeWAV reads a WAV stream into mono samples at the target rate, peak
// normalized to 1.
func decodeWAV(r io.ReadSeeker, targetRate int) ([]float64, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}
	return toMono(buf, targetRate)
}

func toMono(buf *goaudio.IntBuffer, targetRate int) ([]float64, error) {
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, ErrInvalidWAV
	}
	fb := buf.AsFloatBuffer()
	if fb.Format.NumChannels > 1 {
		if err := transforms.MonoDownmix(fb); err != nil {
			return nil, fmt.Errorf("failed to downmix: %w", err)
		}
	}
	transforms.NormalizeMax(fb)
	return Resample(fb.Data, fb.Format.SampleRate, targetRate), nil
}

// Resample converts samples between rates by linear interpolation.
func Resample(in []float64, from, to int) []float64 {
	if from <= 0 || to <= 0 || from == to || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]float64, n)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}
