package comparisons

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
)

// ComparisonsPage renders the discrepancy list alongside aggregate stats.
func ComparisonsPage(data PageData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Comparisons</h1>`)
		if data.Message != "" {
			fmt.Fprintf(&b, `<p class="flash">%s</p>`, html.Esc(data.Message))
		}
		if data.ReceiptID != "" {
			fmt.Fprintf(&b, `<p>Receipt %s &middot; <a href="/depot/comparisons">show all</a></p>`, html.Esc(data.ReceiptID))
		}

		b.WriteString(`<form method="GET" action="/depot/comparisons" class="filters">`)
		fmt.Fprintf(&b, `<label>From <input type="date" name="from" value="%s"></label> `, html.Esc(data.From))
		fmt.Fprintf(&b, `<label>To <input type="date" name="to" value="%s"></label> `, html.Esc(data.To))
		if data.ReceiptID != "" {
			fmt.Fprintf(&b, `<input type="hidden" name="receipt" value="%s">`, html.Esc(data.ReceiptID))
		}
		b.WriteString(`<button type="submit">Apply</button></form>`)

		b.WriteString(`<div class="stats">`)
		fmt.Fprintf(&b, `<span>%d discrepancies</span> <span>%d shortages</span> <span>%d overages</span>`,
			data.Stats.Total, data.Stats.Shortages, data.Stats.Overages)
		if data.Stats.Damage+data.Stats.Swap > 0 {
			fmt.Fprintf(&b, ` <span>%d damage</span> <span>%d swap</span>`, data.Stats.Damage, data.Stats.Swap)
		}
		fmt.Fprintf(&b, ` <span>mean |diff| %.1f</span>`, data.Stats.MeanAbs)
		b.WriteString(`</div>`)

		if len(data.Stats.TopSKUs) > 0 {
			b.WriteString(`<h2>Most affected SKUs</h2><ol>`)
			for _, s := range data.Stats.TopSKUs {
				fmt.Fprintf(&b, `<li>%s &mdash; %d discrepancies, %d units</li>`, html.Esc(s.SKU), s.Count, s.TotalAbs)
			}
			b.WriteString(`</ol>`)
		}

		b.WriteString(`<table><thead><tr><th>Pallet</th><th>SKU</th><th>Origin</th><th>Destination</th><th>Diff</th><th>Type</th><th>Reason</th><th>When</th></tr></thead><tbody>`)
		for _, row := range data.Rows {
			cls := ""
			if row.Critical {
				cls = ` class="critical"`
			}
			fmt.Fprintf(&b, `<tr%s><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%+d</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				cls, html.Esc(row.PalletTag), html.Esc(row.SKU), row.QtyOrigin, row.QtyDest,
				row.Difference, html.Esc(row.DiffType), html.Esc(row.Reason), html.Esc(row.CreatedAt))
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Comparisons", topNav, body)
}
