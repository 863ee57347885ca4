package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// chartScript draws every element carrying echarts options, again after each HTMX swap.
const chartScript = `
function drawCharts(root) {
  root.querySelectorAll('[data-echarts]').forEach(function (el) {
    if (el.dataset.drawn) return;
    echarts.init(el).setOption(JSON.parse(el.dataset.echarts));
    el.dataset.drawn = "true";
  });
}
document.addEventListener('DOMContentLoaded', function () { drawCharts(document); });
document.body.addEventListener('htmx:afterSwap', function (evt) { drawCharts(evt.target); });
`

// Layout is the full page shell. The page body is passed as children.
func Layout(title, csrfToken, nonce string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		children := templ.GetChildren(ctx)
		ctx = templ.ClearChildren(ctx)

		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<meta name="csrf-token"`)
		h.attr("content", csrfToken)
		h.raw(`><title>`)
		h.text(title)
		h.raw(` | CARP Portal</title>`)
		h.raw(`<link rel="stylesheet" href="/assets/css/portal.css">`)
		h.raw(`<script src="https://unpkg.com/htmx.org@1.9.12"`)
		h.attr("nonce", nonce)
		h.raw(`></script><script src="https://cdn.jsdelivr.net/npm/echarts@5.5.0/dist/echarts.min.js"`)
		h.attr("nonce", nonce)
		h.raw(`></script></head><body`)
		h.attr("hx-headers", `{"X-CSRF-Token": "`+csrfToken+`"}`)
		h.raw(`><header class="topbar"><a href="/" class="brand">CARP Portal</a></header><main class="container">`)
		h.render(ctx, children)
		h.raw(`</main><script`)
		h.attr("nonce", nonce)
		h.raw(`>` + chartScript + `</script></body></html>`)
		return h.err
	})
}
