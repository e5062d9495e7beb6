package stock

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
)

// StockImportPage renders the SKU master with the CSV upload form.
func StockImportPage(data PageData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<h1>Stock &mdash; %s</h1>`, html.Esc(data.ContractName))
		fmt.Fprintf(&b, `<p>%s (%s)</p>`, html.Esc(data.ClientName), html.Esc(data.ContractStatus))
		if data.Message != "" {
			fmt.Fprintf(&b, `<p class="flash">%s</p>`, html.Esc(data.Message))
		}

		b.WriteString(`<form method="POST" action="/depot/stock/import" enctype="multipart/form-data" class="stacked-form">`)
		b.WriteString(`<label>CSV file <input type="file" name="file" accept=".csv" required></label>`)
		b.WriteString(`<button type="submit">Import</button>`)
		b.WriteString(`</form>`)

		b.WriteString(`<form method="POST" action="/depot/api/stock/delete">`)
		b.WriteString(`<table><thead><tr><th></th><th>SKU</th><th>Description</th><th>Created</th><th>Updated</th></tr></thead><tbody>`)
		for _, rec := range data.Records {
			fmt.Fprintf(&b, `<tr><td><input type="checkbox" name="item_id" value="%s"></td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				html.Esc(rec.ID), html.Esc(rec.SKU), html.Esc(rec.Description), html.Esc(rec.CreatedAt), html.Esc(rec.UpdatedAt))
		}
		b.WriteString(`</tbody></table>`)
		b.WriteString(`<button type="submit">Delete selected</button>`)
		b.WriteString(`</form>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Stock", topNav, body)
}
