package exports

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
)

func ExportsPage(data PageData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<h1>Exports &mdash; %s</h1>`, html.Esc(data.ContractName))
		fmt.Fprintf(&b, `<p>%s (%s)</p>`, html.Esc(data.ClientName), html.Esc(data.ContractStatus))

		b.WriteString(`<form method="GET" action="/depot/exports">`)
		b.WriteString(`<label>Contract <select name="contract_id" onchange="this.form.submit()">`)
		for _, opt := range data.Contracts {
			selected := ""
			if opt.Selected {
				selected = ` selected`
			}
			fmt.Fprintf(&b, `<option value="%s"%s>%s</option>`, html.Esc(opt.ID), selected, html.Esc(opt.Label))
		}
		b.WriteString(`</select></label>`)
		b.WriteString(`</form>`)

		b.WriteString(`<ul class="export-links">`)
		fmt.Fprintf(&b, `<li><a href="/depot/api/exports/comparisons.csv?contract_id=%s">Discrepancies (CSV)</a></li>`, html.Esc(data.ContractID))
		fmt.Fprintf(&b, `<li><a href="/depot/api/exports/pallet-status.csv?contract_id=%s">Pallet status (CSV)</a></li>`, html.Esc(data.ContractID))
		fmt.Fprintf(&b, `<li><a href="/depot/api/exports/receipts.csv?contract_id=%s">Receipts (CSV)</a></li>`, html.Esc(data.ContractID))
		b.WriteString(`</ul>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Exports", topNav, body)
}
