package adminusers

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
)

func UsersListPage(data PageData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Users</h1>`)
		if data.Status != "" {
			fmt.Fprintf(&b, `<p class="flash">%s</p>`, html.Esc(data.Status))
		}
		if data.ErrorMessage != "" {
			fmt.Fprintf(&b, `<p class="flash error">%s</p>`, html.Esc(data.ErrorMessage))
		}

		b.WriteString(`<table><thead><tr><th>ID</th><th>Username</th><th>Role</th><th>Contracts</th></tr></thead><tbody>`)
		for _, u := range data.Users {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				strconv.FormatInt(u.ID, 10), html.Esc(u.Username), html.Esc(u.Role), html.Esc(u.ClientContracts))
		}
		b.WriteString(`</tbody></table>`)

		b.WriteString(`<h2>New user</h2>`)
		b.WriteString(`<form method="POST" action="/depot/api/admin/users" class="stacked-form">`)
		b.WriteString(`<label>Username <input type="text" name="username" required></label>`)
		b.WriteString(`<label>Password <input type="password" name="password" required></label>`)
		b.WriteString(`<label>Role <select name="role">`)
		b.WriteString(`<option value="operator">operator</option>`)
		b.WriteString(`<option value="admin">admin</option>`)
		b.WriteString(`<option value="client">client</option>`)
		b.WriteString(`</select></label>`)
		b.WriteString(`<fieldset><legend>Client contracts</legend>`)
		for _, c := range data.Contracts {
			fmt.Fprintf(&b, `<label><input type="checkbox" name="client_contract_ids" value="%s"> %s</label>`,
				html.Esc(c.ID), html.Esc(c.Label))
		}
		b.WriteString(`</fieldset>`)
		b.WriteString(`<button type="submit">Create</button>`)
		b.WriteString(`</form>`)

		b.WriteString(`<h2>Update client access</h2>`)
		b.WriteString(`<form method="POST" action="/depot/api/admin/users/client-access" class="stacked-form">`)
		b.WriteString(`<label>Client user id <input type="number" name="client_user_id" min="1" required></label>`)
		b.WriteString(`<fieldset><legend>Contracts</legend>`)
		for _, c := range data.Contracts {
			fmt.Fprintf(&b, `<label><input type="checkbox" name="client_contract_ids_update" value="%s"> %s</label>`,
				html.Esc(c.ID), html.Esc(c.Label))
		}
		b.WriteString(`</fieldset>`)
		b.WriteString(`<button type="submit">Update</button>`)
		b.WriteString(`</form>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Users", topNav, body)
}
