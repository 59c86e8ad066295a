package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"hearing-go/internal/procedure"
	"hearing-go/internal/services"
)

// Panel is the live test fragment. It polls /test/status while a run is active.
func Panel(st services.Status) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		if st.State == services.StateRunning {
			p.raw(`<div id="panel" hx-get="/test/status" hx-trigger="every 500ms" hx-swap="outerHTML">`)
		} else {
			p.raw(`<div id="panel">`)
		}

		switch st.State {
		case services.StateRunning:
			running(p, st)
		case services.StateComplete:
			p.raw(`<h2>Test complete</h2><p><a href="/results">See your results</a></p>`)
		case services.StateVoiceMismatch:
			p.raw(`<h2>No voice for this language</h2>`)
			p.raw(`<p class="warning">The words will be read by a voice for a different language. Results may not be accurate.</p>`)
			p.raw(`<form hx-post="/test/start" hx-target="#main">`)
			p.rawf(`<input type="hidden" name="language" value="%s"><input type="hidden" name="consent" value="true">`, templ.EscapeString(st.Language))
			p.rawf(`<button type="submit" name="mode" value="%s">Continue anyway</button>`, templ.EscapeString(string(st.Mode)))
			p.raw(`</form><p><a href="/">Choose another test</a></p>`)
		case services.StateFailed:
			p.raw(`<h2>The test stopped with an error</h2><p>`)
			p.text(st.Error)
			p.raw(`</p><p><a href="/">Back</a></p>`)
		case services.StateStopped:
			p.raw(`<h2>Test stopped</h2><p><a href="/">Back</a></p>`)
		default:
			if st.Tutorial != nil {
				p.rawf(`<h2>Practice finished</h2><p>You heard %d of %d tones.</p>`, st.Tutorial.Heard, st.Tutorial.Total)
			}
			p.raw(`<p><a href="/">Back to the menu</a></p>`)
		}

		p.raw(`</div>`)
		return p.err
	})
}

func running(p *page, st services.Status) {
	pr := st.Progress
	if pr == nil {
		p.raw(`<p>Starting…</p>`)
		stopButton(p)
		return
	}
	if len(st.Steps) > 1 {
		p.rawf(`<p>Part %d of %d</p>`, stepIndex(st)+1, len(st.Steps))
	}

	switch pr.Procedure {
	case procedure.ProcedurePureTone, procedure.ProcedureTutorial:
		p.rawf(`<h2>%s ear, %d Hz</h2>`, templ.EscapeString(earLabel(string(pr.Ear))), pr.Frequency)
		if pr.Pairs > 0 {
			p.rawf(`<p>Step %d of %d</p>`, pr.Pair+1, pr.Pairs)
		} else if pr.Trials > 0 {
			p.rawf(`<p>Practice tone %d of %d</p>`, pr.Trial, pr.Trials)
		}
		p.raw(`<p>Press the button or the space bar whenever you hear a tone.</p>`)
		p.raw(`<button hx-post="/test/respond" hx-swap="none">I heard it</button>`)
		if pr.Procedure == procedure.ProcedurePureTone {
			p.raw(`<button hx-post="/test/skip" hx-swap="none">Skip this frequency</button>`)
		}
	case procedure.ProcedureGame:
		p.raw(`<h2>`)
		p.text(pr.Scenario)
		p.raw(`</h2><p>`)
		p.text(pr.Prompt)
		p.raw(`</p><div class="tiles">`)
		for i, tile := range pr.Tiles {
			p.rawf(`<div><button style="background:%s" hx-post="/test/probe/%d" hx-swap="none">`, templ.EscapeString(tile.Color), i)
			p.text(tile.Label)
			p.rawf(`</button><button hx-post="/test/confirm/%d" hx-swap="none">This one</button></div>`, i)
		}
		p.raw(`</div><button hx-post="/test/dontknow" hx-swap="none">I don't know</button>`)
		if pr.Feedback != "" {
			p.rawf(`<p class="feedback-%s">%s</p>`, templ.EscapeString(pr.Feedback), templ.EscapeString(pr.Feedback))
		}
	case procedure.ProcedureSpeech:
		p.rawf(`<h2>Word %d of %d</h2>`, pr.Trial, pr.Trials)
		if pr.Phase == procedure.PhaseAnswering {
			p.raw(`<p>Which word did you hear?</p><div class="options">`)
			for i, o := range pr.Options {
				p.rawf(`<button hx-post="/test/answer/%d" hx-swap="none">`, i)
				p.text(o)
				p.raw(`</button>`)
			}
			p.raw(`</div><button hx-post="/test/replay" hx-swap="none">Play again</button>`)
		} else {
			p.raw(`<p>Listen…</p>`)
		}
	}
	stopButton(p)
}

func stopButton(p *page) {
	p.raw(`<p><button hx-post="/test/stop" hx-target="#panel" hx-swap="outerHTML">Stop</button></p>`)
}

func stepIndex(st services.Status) int {
	for i, s := range st.Steps {
		if s == st.Step {
			return i
		}
	}
	return 0
}

func earLabel(ear string) string {
	switch ear {
	case "right":
		return "Right"
	case "left":
		return "Left"
	}
	return ear
}
