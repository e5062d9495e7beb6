package receipts

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
)

// ReceiptsPage renders the receipt list with status filters.
func ReceiptsPage(data PageData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Receipts</h1>`)
		if data.Message != "" {
			fmt.Fprintf(&b, `<p class="flash">%s</p>`, html.Esc(data.Message))
		}
		b.WriteString(`<p class="filters">`)
		for _, s := range []string{"", "ok", "warning", "critical"} {
			label := s
			href := "/depot/receipts"
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

		b.WriteString(`<table><thead><tr><th>Subject</th><th>Location</th><th>Status</th><th>Received</th><th></th></tr></thead><tbody>`)
		for _, row := range data.Rows {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td class="status-%s">%s</td><td>%s</td><td><a href="/depot/comparisons?receipt=%s">comparisons</a></td></tr>`,
				html.Esc(row.Subject), html.Esc(row.Location), html.Esc(row.Status), html.Esc(row.Status),
				html.Esc(row.ReceivedAt), html.Esc(row.ID))
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Receipts", topNav, body)
}
