// Package views renders the HTML of the local input surface.
package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// page accumulates the first write error so components read top to bottom.
type page struct {
	w   io.Writer
	err error
}

func (p *page) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *page) text(s string) {
	p.raw(templ.EscapeString(s))
}

// rawf formats into the page. Callers escape user-visible arguments.
func (p *page) rawf(format string, args ...any) {
	p.raw(fmt.Sprintf(format, args...))
}

func (p *page) render(ctx context.Context, c templ.Component) {
	if p.err == nil {
		p.err = c.Render(ctx, p.w)
	}
}

// Layout wraps the children of ctx in the document shell. Scripts carry the request's CSP nonce.
func Layout(title, nonce string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>`)
		p.text(title)
		p.raw(`</title>`)
		p.rawf(`<script nonce="%s" src="https://unpkg.com/htmx.org@1.9.12"></script>`, templ.EscapeString(nonce))
		p.rawf(`<script nonce="%s" src="https://cdn.jsdelivr.net/npm/echarts@5.5.0/dist/echarts.min.js"></script>`, templ.EscapeString(nonce))
		p.raw(`<style>
body{font-family:system-ui,sans-serif;max-width:960px;margin:0 auto;padding:1rem}
button{font-size:1.1rem;padding:.6rem 1.2rem;margin:.25rem}
.tiles button{min-width:8rem;min-height:5rem}
.chart{width:100%;height:420px}
.warning{color:#b26a00}
.feedback-correct{color:#2e7d32}.feedback-incorrect{color:#c62828}
</style></head><body>`)
		p.raw(`<header><a href="/"><h1>Hearing Test</h1></a></header><main id="main">`)
		p.render(ctx, templ.GetChildren(ctx))
		p.raw(`</main>`)
		// space bar answers "heard" while a tone test is running
		p.rawf(`<script nonce="%s">document.addEventListener('keydown',function(e){if(e.code==='Space'&&document.getElementById('panel')){e.preventDefault();htmx.ajax('POST','/test/respond',{swap:'none'});}});</script>`, templ.EscapeString(nonce))
		p.raw(`</body></html>`)
		return p.err
	})
}
