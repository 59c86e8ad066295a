package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ChartData is one chart's echarts option JSON and the element it is drawn into.
type ChartData struct {
	ID      string
	Options string
}

type ResultsData struct {
	Nonce  string
	Charts []ChartData
	// SpeechThreshold is empty when no speech test ran.
	SpeechThreshold string
	Reliability     string
}

func Results(d ResultsData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<section id="results"><h2>Your results</h2>`)
		if d.SpeechThreshold != "" {
			p.raw(`<p>Speech recognition threshold: <strong>`)
			p.text(d.SpeechThreshold)
			p.raw(`</strong></p>`)
		}
		if d.Reliability != "" {
			p.raw(`<p>`)
			p.text(d.Reliability)
			p.raw(`</p>`)
		}
		for _, c := range d.Charts {
			p.rawf(`<div id="%s" class="chart"></div>`, templ.EscapeString(c.ID))
		}
		p.raw(`<p><a href="/results/export.csv" download>Download CSV</a> · <a href="/results/export.png" download>Download audiogram image</a></p>`)
		p.raw(`<p><a href="/">Back to the menu</a></p></section>`)

		p.rawf(`<script nonce="%s">`, templ.EscapeString(d.Nonce))
		for _, c := range d.Charts {
			p.rawf(`echarts.init(document.getElementById(%q)).setOption(%s);`, c.ID, c.Options)
		}
		p.raw(`</script>`)
		return p.err
	})
}

// Message is a one-paragraph page body.
func Message(text string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<p>`)
		p.text(text)
		p.raw(`</p><p><a href="/">Back to the menu</a></p>`)
		return p.err
	})
}
