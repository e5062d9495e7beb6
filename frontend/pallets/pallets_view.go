package pallets

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
)

// PalletsPage renders the pallet list for the active contract.
func PalletsPage(data PageData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Pallets</h1>`)
		if data.Message != "" {
			fmt.Fprintf(&b, `<p class="flash">%s</p>`, html.Esc(data.Message))
		}
		b.WriteString(`<p class="filters">`)
		for _, s := range []string{"", "draft", "sealed", "in_transit", "received", "finalized", "cancelled"} {
			label := s
			href := "/depot/pallets"
			if s == "" {
				label = "all"
			} else {
				href += "?status=" + s
			}
			cls := ""
			if s == data.Filter {
				cls = ` class="active"`
			}
			fmt.Fprintf(&b, `<a href="%s"%s>%s</a> `, href, cls, label)
		}
		b.WriteString(`</p>`)

		b.WriteString(`<table><thead><tr><th>Tag</th><th>Status</th><th>Origin</th><th>Destination</th><th>Review</th><th>Created</th></tr></thead><tbody>`)
		for _, row := range data.Rows {
			review := ""
			if row.ManualReview {
				review = `<span class="badge badge-warn">manual review</span>`
			}
			dest := row.Destination
			if dest == "" {
				dest = "-"
			}
			fmt.Fprintf(&b, `<tr><td><a href="/depot/pallets/%s">%s</a></td><td class="status-%s">%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				html.Esc(row.ID), html.Esc(row.TagCode), html.Esc(row.Status), html.Esc(row.Status),
				html.Esc(row.Origin), html.Esc(dest), review, html.Esc(row.CreatedAt))
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Pallets", topNav, body)
}

// PalletDetailPage renders one pallet with SKU lines and action buttons.
func PalletDetailPage(data DetailData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<h1>Pallet %s</h1>`, html.Esc(data.TagCode))
		fmt.Fprintf(&b, `<p>Status: <span class="status-%s">%s</span></p>`, html.Esc(data.Status), html.Esc(data.Status))
		fmt.Fprintf(&b, `<p>Origin: %s`, html.Esc(data.Origin))
		if data.Destination != "" {
			fmt.Fprintf(&b, ` &rarr; %s`, html.Esc(data.Destination))
		}
		b.WriteString(`</p>`)
		if data.AIConfidence != nil {
			fmt.Fprintf(&b, `<p>Vision confidence: %d%%`, *data.AIConfidence)
			if data.ManualReview {
				b.WriteString(` <span class="badge badge-warn">manual review</span>`)
			}
			b.WriteString(`</p>`)
		}

		b.WriteString(`<table><thead><tr><th>SKU</th><th>Description</th><th>Origin qty</th><th>Destination qty</th><th>AI suggested</th></tr></thead><tbody>`)
		for _, it := range data.Items {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td></tr>`,
				html.Esc(it.SKU), html.Esc(it.Description), it.QtyOrigin, it.QtyDest, it.AISuggested)
		}
		b.WriteString(`</tbody></table>`)

		fmt.Fprintf(&b, `<p><a href="/depot/pallets/%s/label.pdf">Content label (PDF)</a></p>`, html.Esc(data.ID))

		for _, action := range []string{"seal", "receive", "finalize", "cancel"} {
			fmt.Fprintf(&b, `<form method="POST" action="/depot/api/pallets/%s/%s" class="inline-form"><button type="submit">%s</button></form>`,
				html.Esc(data.ID), action, action)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Pallet "+data.TagCode, topNav, body)
}
