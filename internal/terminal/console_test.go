package terminal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"hearing-go/internal/models"
	"hearing-go/internal/procedure"
	"hearing-go/internal/services"
)

func TestDispatch(t *testing.T) {
	tests := []struct {
		proc string
		key  byte
		want action
	}{
		{procedure.ProcedurePureTone, ' ', action{kind: actRespond}},
		{procedure.ProcedurePureTone, 's', action{kind: actSkip}},
		{procedure.ProcedureTutorial, 's', action{kind: actNone}},
		{procedure.ProcedureTutorial, ' ', action{kind: actRespond}},
		{procedure.ProcedureGame, '3', action{kind: actProbe, index: 2}},
		{procedure.ProcedureGame, 'w', action{kind: actConfirm, index: 1}},
		{procedure.ProcedureGame, '?', action{kind: actDontKnow}},
		{procedure.ProcedureGame, '4', action{kind: actNone}},
		{procedure.ProcedureSpeech, '4', action{kind: actAnswer, index: 3}},
		{procedure.ProcedureSpeech, 'r', action{kind: actReplay}},
		{procedure.ProcedureSpeech, ' ', action{kind: actNone}},
		{"", keyEsc, action{kind: actQuit}},
		{procedure.ProcedureGame, keyCtrlC, action{kind: actQuit}},
	}
	for _, tt := range tests {
		if got := dispatch(tt.proc, tt.key); got != tt.want {
			t.Errorf("dispatch(%s, %q) = %+v, want %+v", tt.proc, tt.key, got, tt.want)
		}
	}
}

// scriptedRunner completes its pure tone run on the first response.
type scriptedRunner struct {
	mu       sync.Mutex
	state    services.State
	bundle   models.ResultsBundle
	done     bool
	stops    int
	starts   []services.StartOptions
	startErr error
}

func (r *scriptedRunner) Start(_ context.Context, _ models.Mode, opts services.StartOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, opts)
	if len(r.starts) == 1 && r.startErr != nil {
		return r.startErr
	}
	r.state = services.StateRunning
	return nil
}

func (r *scriptedRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.state = services.StateStopped
}

func (r *scriptedRunner) Status() services.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return services.Status{
		State:    r.state,
		Progress: &procedure.Progress{Procedure: procedure.ProcedurePureTone, Ear: models.EarRight, Frequency: 250, Pairs: 16},
	}
}

func (r *scriptedRunner) Results() (models.ResultsBundle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bundle, r.done
}

func (r *scriptedRunner) Respond() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tone := models.NewToneResults(time.Now())
	_ = tone.Set(models.EarRight, 250, models.LevelThreshold(-10))
	r.bundle = models.ResultsBundle{Mode: models.ModePureTone, PureTone: &tone}
	r.done = true
	r.state = services.StateComplete
	return nil
}

func (r *scriptedRunner) Skip() error       { return nil }
func (r *scriptedRunner) Probe(int) error   { return nil }
func (r *scriptedRunner) Confirm(int) error { return nil }
func (r *scriptedRunner) DontKnow() error   { return nil }
func (r *scriptedRunner) Answer(int) error  { return nil }
func (r *scriptedRunner) Replay() error     { return nil }

func newTestConsole(t *testing.T, r Runner, input string) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	c := NewConsole(zaptest.NewLogger(t), r, strings.NewReader(input), &out)
	c.poll = time.Millisecond
	c.now = func() time.Time { return time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC) }
	return c, &out
}

func TestConsoleRunWritesExports(t *testing.T) {
	r := &scriptedRunner{}
	c, out := newTestConsole(t, r, " ")
	dir := t.TempDir()

	if err := c.Run(context.Background(), models.ModePureTone, services.StartOptions{}, dir); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, name := range []string{"hearing-test-2026-02-03.csv", "hearing-test-2026-02-03.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if !strings.Contains(out.String(), "right ear 250 Hz (1/16)\r\n") {
		t.Errorf("progress not shown: %q", out.String())
	}
}

func TestConsoleQuit(t *testing.T) {
	r := &scriptedRunner{}
	c, _ := newTestConsole(t, r, "\x1b")

	err := c.Run(context.Background(), models.ModePureTone, services.StartOptions{}, t.TempDir())
	if !errors.Is(err, ErrQuit) {
		t.Fatalf("err = %v, want ErrQuit", err)
	}
	if r.stops != 1 {
		t.Errorf("stops = %d", r.stops)
	}
}

func TestConsoleVoiceMismatchConsent(t *testing.T) {
	r := &scriptedRunner{startErr: &procedure.VoiceMismatchError{Language: "he", Voice: "he"}}
	c, _ := newTestConsole(t, r, "y\x1b")

	err := c.Run(context.Background(), models.ModeSpeech, services.StartOptions{Language: "he"}, t.TempDir())
	if !errors.Is(err, ErrQuit) {
		t.Fatalf("err = %v, want ErrQuit after consent", err)
	}
	if len(r.starts) != 2 || !r.starts[1].AllowVoiceMismatch {
		t.Fatalf("starts = %+v", r.starts)
	}
}

func TestConsoleVoiceMismatchDeclined(t *testing.T) {
	r := &scriptedRunner{startErr: &procedure.VoiceMismatchError{Language: "he", Voice: "he"}}
	c, _ := newTestConsole(t, r, "n")

	err := c.Run(context.Background(), models.ModeSpeech, services.StartOptions{Language: "he"}, t.TempDir())
	var mismatch *procedure.VoiceMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want VoiceMismatchError", err)
	}
}
