package audio

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"hearing-go/internal/models"
)

func frameAt(buf []byte, i int) (left, right float32) {
	left = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*8:]))
	right = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*8+4:]))
	return left, right
}

func TestLevelToGain(t *testing.T) {
	tests := []struct {
		db   float64
		want float64
	}{
		{-10, 0.00003},
		{10, 0.0003},
		{30, 0.003},
		{-40, 0.00003}, // clamped to the floor
	}
	for _, tt := range tests {
		if got := LevelToGain(tt.db); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("LevelToGain(%v) = %v, want %v", tt.db, got, tt.want)
		}
	}
	if got := LevelToGain(100); got > 1 {
		t.Errorf("LevelToGain(100) = %v, want <= 1", got)
	}
	if LevelToGain(200) != LevelToGain(100) {
		t.Error("levels above the ceiling must clamp")
	}
}

func TestChannelGains(t *testing.T) {
	tests := []struct {
		ch          models.Ear
		left, right float64
	}{
		{models.EarLeft, 0.5, 0},
		{models.EarRight, 0, 0.5},
		{models.EarBoth, 0.5, 0.5},
		{models.EarNone, 0, 0},
	}
	for _, tt := range tests {
		l, r := ChannelGains(tt.ch, 0.5)
		if l != tt.left || r != tt.right {
			t.Errorf("ChannelGains(%s) = (%v, %v), want (%v, %v)", tt.ch, l, r, tt.left, tt.right)
		}
	}
}

func TestRenderRoutesAndFades(t *testing.T) {
	s := NewSynth(8000, 10*time.Millisecond)
	st := Stimulus{FrequencyHz: 1000, Level: 90, Channel: models.EarRight, Duration: 100 * time.Millisecond}
	buf := s.Render(st)

	if len(buf) != 800*frameSize {
		t.Fatalf("len = %d, want %d", len(buf), 800*frameSize)
	}
	if d := s.Duration(buf); d != 100*time.Millisecond {
		t.Errorf("Duration = %v, want 100ms", d)
	}

	gain := LevelToGain(90)
	var peak float64
	for i := 0; i < 800; i++ {
		l, r := frameAt(buf, i)
		if l != 0 {
			t.Fatalf("left channel not silent at frame %d: %v", i, l)
		}
		peak = math.Max(peak, math.Abs(float64(r)))
	}
	if peak > gain*1.0001 || peak < gain*0.9 {
		t.Errorf("peak = %v, want about %v", peak, gain)
	}

	if _, r := frameAt(buf, 0); r != 0 {
		t.Errorf("first frame = %v, want 0", r)
	}
	if _, r := frameAt(buf, 799); math.Abs(float64(r)) > 1e-9 {
		t.Errorf("last frame = %v, want 0", r)
	}
}

func TestRenderEmpty(t *testing.T) {
	if buf := NewSynth(0, DefaultFade).Render(Stimulus{Duration: 0}); buf != nil {
		t.Fatalf("expected no frames, got %d bytes", len(buf))
	}
}

func TestResample(t *testing.T) {
	in := []float64{0, 1, 0, -1}
	out := Resample(in, 4, 8)
	if len(out) != 8 {
		t.Fatalf("len = %d, want 8", len(out))
	}
	if out[1] != 0.5 || out[2] != 1 {
		t.Errorf("out = %v", out)
	}
	if got := Resample(in, 8, 8); len(got) != len(in) {
		t.Error("equal rates must return input unchanged")
	}
}

func TestHasVoice(t *testing.T) {
	header := "Pty Language       Age/Gender VoiceName          File                 Other Languages\n"
	if hasVoice([]byte(header)) {
		t.Error("header only must report no voice")
	}
	if !hasVoice([]byte(header + " 5  he              --/M      Hebrew             sem/he\n")) {
		t.Error("listed voice not detected")
	}
}

// writeTestWAV writes 100 ms of a 440 Hz mono tone and returns its samples.
func writeTestWAV(t *testing.T, w io.WriteSeeker, rate int) []int {
	t.Helper()
	data := make([]int, rate/10)
	for i := range data {
		data[i] = int(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	enc := wav.NewEncoder(w, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDecodeWAV(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "word-*.wav")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	const rate = 22050
	data := writeTestWAV(t, f, rate)
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatal(err)
	}

	samples, err := decodeWAV(f, 2*rate)
	if err != nil {
		t.Fatalf("decodeWAV: %v", err)
	}
	if len(samples) != 2*len(data) {
		t.Fatalf("len = %d, want %d", len(samples), 2*len(data))
	}
	var peak float64
	for _, v := range samples {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak < 0.99 || peak > 1.0001 {
		t.Errorf("peak = %v, want normalized to 1", peak)
	}
}
