package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ErrorCard shows a failed load. detail is the backend's message and may be empty.
func ErrorCard(message, detail string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section class="card card-error" role="alert"><h3>`)
		h.text(message)
		h.raw(`</h3>`)
		if detail != "" {
			h.raw(`<p class="muted">`)
			h.text(detail)
			h.raw(`</p>`)
		}
		h.raw(`</section>`)
		return h.err
	})
}
