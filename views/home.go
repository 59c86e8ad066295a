package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"hearing-go/internal/models"
)

// ModeOption is one entry of the mode menu.
type ModeOption struct {
	Mode     models.Mode
	Label    string
	Speech   bool
	Disabled bool
}

type HomeData struct {
	Modes     []ModeOption
	Languages []string
	Language  string
	// SpeechAvailable is false when no voice exists for Language.
	SpeechAvailable bool
	HasResults      bool
}

var modeLabels = map[models.Mode]string{
	models.ModePureTone: "Pure tone audiogram",
	models.ModeSpeech:   "Speech recognition",
	models.ModeBoth:     "Pure tone and speech",
	models.ModeGame:     "Listening game",
}

// ModeMenu lists every mode; speech modes are disabled without a voice.
func ModeMenu(speechAvailable bool) []ModeOption {
	out := make([]ModeOption, 0, len(models.Modes))
	for _, m := range models.Modes {
		out = append(out, ModeOption{
			Mode:     m,
			Label:    modeLabels[m],
			Speech:   m.NeedsSpeech(),
			Disabled: m.NeedsSpeech() && !speechAvailable,
		})
	}
	return out
}

func Home(d HomeData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<section id="menu"><h2>Choose a test</h2>`)
		p.raw(`<p>Use headphones in a quiet room. Set the computer volume to a comfortable level before starting.</p>`)
		p.raw(`<form hx-post="/test/start" hx-target="#main">`)
		p.raw(`<label>Language <select name="language">`)
		for _, lang := range d.Languages {
			sel := ""
			if lang == d.Language {
				sel = " selected"
			}
			p.rawf(`<option value="%s"%s>%s</option>`, templ.EscapeString(lang), sel, templ.EscapeString(lang))
		}
		p.raw(`</select></label>`)
		if !d.SpeechAvailable {
			p.raw(`<p class="warning">No speech voice is installed for this language. Speech tests are unavailable.</p>`)
		}
		p.raw(`<div class="modes">`)
		for _, m := range d.Modes {
			disabled := ""
			if m.Disabled {
				disabled = " disabled"
			}
			p.rawf(`<button type="submit" name="mode" value="%s"%s>`, templ.EscapeString(string(m.Mode)), disabled)
			p.text(m.Label)
			p.raw(`</button>`)
		}
		p.raw(`</div></form>`)
		p.raw(`<button hx-post="/test/tutorial" hx-target="#main">Practice first</button>`)
		if d.HasResults {
			p.raw(`<p><a href="/results">View last results</a></p>`)
		}
		p.raw(`</section>`)
		return p.err
	})
}
