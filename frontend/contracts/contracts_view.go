package contracts

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
)

// ContractsPage renders the contract list with the create form for admins.
func ContractsPage(data PageData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Contracts</h1>`)
		if data.Message != "" {
			fmt.Fprintf(&b, `<p class="flash">%s</p>`, html.Esc(data.Message))
		}

		b.WriteString(`<p class="filters">`)
		for _, f := range []string{"active", "archived", "all"} {
			cls := ""
			if f == data.Filter {
				cls = ` class="active"`
			}
			fmt.Fprintf(&b, `<a href="/depot/contracts?filter=%s"%s>%s</a> `, f, cls, f)
		}
		b.WriteString(`</p>`)

		b.WriteString(`<table><thead><tr><th>Contract</th><th>Client</th><th>Code</th><th>Status</th><th>Open</th><th>Moving</th><th>Finalized</th><th></th></tr></thead><tbody>`)
		for _, row := range data.Rows {
			marker := ""
			if row.IsCurrent {
				marker = ` <span class="badge">current</span>`
			}
			fmt.Fprintf(&b, `<tr><td>%s%s</td><td>%s</td><td>%s</td><td class="status-%s">%s</td><td>%d</td><td>%d</td><td>%d</td>`,
				html.Esc(row.Name), marker, html.Esc(row.ClientName), html.Esc(row.Code),
				html.Esc(row.Status), html.Esc(row.Status),
				row.OpenPallets, row.MovingPallets, row.FinishedPallets)
			b.WriteString(`<td>`)
			if !row.IsCurrent {
				fmt.Fprintf(&b, `<form method="POST" action="/depot/contracts/%s/activate" class="inline-form"><button type="submit">activate</button></form>`,
					html.Esc(row.ID))
			}
			if data.IsAdmin {
				next := "archived"
				if row.Status == "archived" {
					next = "active"
				}
				fmt.Fprintf(&b, `<form method="POST" action="/depot/contracts/%s/status" class="inline-form"><input type="hidden" name="status" value="%s"><input type="hidden" name="filter" value="%s"><button type="submit">%s</button></form>`,
					html.Esc(row.ID), next, html.Esc(data.Filter), next)
			}
			b.WriteString(`</td></tr>`)
		}
		b.WriteString(`</tbody></table>`)

		if data.IsAdmin {
			b.WriteString(`<h2>New contract</h2>`)
			b.WriteString(`<form method="POST" action="/depot/contracts" class="stacked-form">`)
			b.WriteString(`<label>Name <input type="text" name="name" required></label>`)
			b.WriteString(`<label>Client <input type="text" name="client_name" required></label>`)
			b.WriteString(`<label>Code <input type="text" name="code" placeholder="auto from name"></label>`)
			b.WriteString(`<button type="submit">Create</button>`)
			b.WriteString(`</form>`)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Contracts", topNav, body)
}
