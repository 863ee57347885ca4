package components

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Alert renders a status message. kind is "success", "error" or "info".
func Alert(message, kind string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if message == "" {
			return nil
		}
		if kind == "" {
			kind = "info"
		}
		_, err := io.WriteString(w, `<div class="alert alert-`+templ.EscapeString(kind)+`" role="alert">`+
			templ.EscapeString(message)+`</div>`)
		return err
	})
}
