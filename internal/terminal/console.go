// Package terminal runs a test from the keyboard without a browser.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"hearing-go/internal/export"
	"hearing-go/internal/models"
	"hearing-go/internal/procedure"
	"hearing-go/internal/services"
)

// Runner is the part of the orchestrator the console drives.
type Runner interface {
	Start(ctx context.Context, mode models.Mode, opts services.StartOptions) error
	Stop()
	Status() services.Status
	Results() (models.ResultsBundle, bool)

	Respond() error
	Skip() error
	Probe(tile int) error
	Confirm(tile int) error
	DontKnow() error
	Answer(option int) error
	Replay() error
}

var ErrQuit = errors.New("test quit by subject")

type Console struct {
	log    *zap.Logger
	runner Runner
	in     io.Reader
	out    io.Writer
	poll   time.Duration
	now    func() time.Time
}

func NewConsole(log *zap.Logger, runner Runner, in io.Reader, out io.Writer) *Console {
	return &Console{
		log:    log.Named("terminal"),
		runner: runner,
		in:     in,
		out:    out,
		poll:   100 * time.Millisecond,
		now:    time.Now,
	}
}

// Run performs one test and writes its CSV and PNG into dir.
// The terminal is in raw mode while the test runs.
func (c *Console) Run(ctx context.Context, mode models.Mode, opts services.StartOptions, dir string) error {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		old, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return fmt.Errorf("failed to set raw mode: %w", err)
		}
		defer term.Restore(int(f.Fd()), old)
	}

	keys := make(chan byte, 16)
	go c.read(keys)

	c.println(usage(mode))
	err := c.runner.Start(ctx, mode, opts)
	var mismatch *procedure.VoiceMismatchError
	if errors.As(err, &mismatch) {
		c.println(fmt.Sprintf("No %s voice is installed; words will be read by another voice. Continue? [y/N]", mismatch.Language))
		select {
		case k := <-keys:
			if k != 'y' && k != 'Y' {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		opts.AllowVoiceMismatch = true
		err = c.runner.Start(ctx, mode, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", mode, err)
	}

	if err := c.loop(ctx, keys); err != nil {
		return err
	}
	return c.save(dir)
}

func (c *Console) read(keys chan<- byte) {
	buf := make([]byte, 1)
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			keys <- buf[0]
		}
		if err != nil {
			return
		}
	}
}

func (c *Console) loop(ctx context.Context, keys <-chan byte) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	last := ""
	for {
		st := c.runner.Status()
		if line := describe(st); line != last {
			c.println(line)
			last = line
		}
		if st.State != services.StateRunning {
			if st.State == services.StateComplete {
				return nil
			}
			return fmt.Errorf("test ended in state %s: %s", st.State, st.Error)
		}

		select {
		case <-ctx.Done():
			c.runner.Stop()
			return ctx.Err()
		case k := <-keys:
			step := ""
			if st.Progress != nil {
				step = st.Progress.Procedure
			}
			a := dispatch(step, k)
			if a.kind == actQuit {
				c.runner.Stop()
				return ErrQuit
			}
			if err := apply(c.runner, a); err != nil && !errors.Is(err, services.ErrNoActiveSession) {
				c.log.Warn("Input not accepted", zap.Error(err))
			}
		case <-ticker.C:
		}
	}
}

// save writes the exports named after today's date.
func (c *Console) save(dir string) error {
	bundle, ok := c.runner.Results()
	if !ok {
		return nil
	}
	day := c.now()

	csvPath := filepath.Join(dir, export.FileName(day, "csv"))
	if err := writeFile(csvPath, func(w io.Writer) error { return export.WriteCSV(w, bundle) }); err != nil {
		return err
	}
	c.println("Saved " + csvPath)

	tone, ok := bundle.Audiogram()
	if !ok {
		return nil
	}
	title := "Pure Tone Audiogram"
	if bundle.PureTone == nil {
		title = "Game Mode Audiogram"
	}
	pngPath := filepath.Join(dir, export.FileName(day, "png"))
	if err := writeFile(pngPath, func(w io.Writer) error { return export.WriteAudiogramPNG(w, title, tone) }); err != nil {
		return err
	}
	c.println("Saved " + pngPath)
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// println ends lines with CRLF, which raw mode needs.
func (c *Console) println(s string) {
	fmt.Fprint(c.out, strings.ReplaceAll(s, "\n", "\r\n")+"\r\n")
}

func usage(mode models.Mode) string {
	switch mode {
	case models.ModeGame:
		return "Keys: 1-3 listen to a tile, q/w/e pick it, ? don't know, Esc quit"
	case models.ModeSpeech:
		return "Keys: 1-4 choose the word, r replay, Esc quit"
	case models.ModeBoth:
		return "Keys: space when you hear a tone, s skip, then 1-4 choose the word, r replay, Esc quit"
	}
	return "Keys: space when you hear a tone, s skip the frequency, Esc quit"
}

// describe renders a status as one line. It changes only when something worth showing changes.
func describe(st services.Status) string {
	if st.State != services.StateRunning {
		return "Test " + string(st.State)
	}
	pr := st.Progress
	if pr == nil {
		return "Starting..."
	}
	switch pr.Procedure {
	case procedure.ProcedurePureTone:
		return fmt.Sprintf("%s ear %d Hz (%d/%d)", pr.Ear, pr.Frequency, pr.Pair+1, pr.Pairs)
	case procedure.ProcedureGame:
		if pr.Feedback != "" {
			return pr.Feedback
		}
		return fmt.Sprintf("%s: %s (%d/%d)", pr.Scenario, pr.Prompt, pr.Pair+1, pr.Pairs)
	case procedure.ProcedureSpeech:
		if pr.Phase != procedure.PhaseAnswering {
			return fmt.Sprintf("Word %d of %d: listen", pr.Trial, pr.Trials)
		}
		opts := make([]string, len(pr.Options))
		for i, o := range pr.Options {
			opts[i] = fmt.Sprintf("%d) %s", i+1, o)
		}
		return fmt.Sprintf("Word %d of %d: %s", pr.Trial, pr.Trials, strings.Join(opts, "  "))
	}
	return pr.Procedure
}
