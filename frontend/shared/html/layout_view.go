package html

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/nav"
)

// Page wraps body in the app shell with the top navigation.
func Page(title string, topNav nav.TopNavData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!doctype html><html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>%s</title><link rel="stylesheet" href="/assets/app.css"></head><body>`, templ.EscapeString(title)); err != nil {
			return err
		}
		if err := nav.TopNav(topNav).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<main class="page">`); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</main>`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, CSRFFormScript()); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// Bare wraps body without navigation, for the login screen.
func Bare(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!doctype html><html><head><meta charset="utf-8"><title>%s</title><link rel="stylesheet" href="/assets/app.css"></head><body><main class="page">`, templ.EscapeString(title)); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, CSRFFormScript()); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// Raw emits pre-built HTML unescaped. Callers own escaping of dynamic parts.
func Raw(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

// Esc escapes a dynamic value for interpolation into Raw fragments.
func Esc(s string) string {
	return templ.EscapeString(s)
}
