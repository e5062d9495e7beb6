package login

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/html"
)

// GetLoginScreen renders the standalone login form.
func GetLoginScreen(errorMessage string) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Pallet tracking</h1>`)
		if errorMessage != "" {
			fmt.Fprintf(&b, `<p class="flash error">%s</p>`, html.Esc(errorMessage))
		}
		b.WriteString(`<form method="POST" action="/login" class="stacked-form">`)
		b.WriteString(`<label>Username <input type="text" name="username" autocomplete="username" required></label>`)
		b.WriteString(`<label>Password <input type="password" name="password" autocomplete="current-password" required></label>`)
		b.WriteString(`<button type="submit">Sign in</button>`)
		b.WriteString(`</form>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Bare("Sign in", body)
}
