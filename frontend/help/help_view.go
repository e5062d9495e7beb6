package help

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
)

func HelpPage(data PageData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Help</h1>`)
		b.WriteString(`<h2>Pallet lifecycle</h2>`)
		b.WriteString(`<p>A pallet starts as a draft linked to a QR tag. Seal it once the contents are counted, ` +
			`load it on a manifest to send it in transit, and record a receipt at the destination to finalize it. ` +
			`Finalizing frees the tag for reuse.</p>`)
		if data.IsOperator || data.IsAdmin {
			b.WriteString(`<h2>Receiving</h2>`)
			b.WriteString(`<p>Scan the manifest or a single pallet tag at the destination, enter the counted ` +
				`quantities per SKU, then create the receipt. Generate the comparison afterwards to see shortages ` +
				`and overages; differences at or above the critical threshold are highlighted.</p>`)
		}
		if data.IsClient {
			b.WriteString(`<h2>Client view</h2>`)
			b.WriteString(`<p>You see the contracts assigned to you. Receipts and discrepancy reports are ` +
				`read-only.</p>`)
		}
		if data.IsAdmin {
			b.WriteString(`<h2>Administration</h2>`)
			b.WriteString(`<p>Manage users, locations, QR tag batches, stock imports and the reconciliation ` +
				`thresholds from the admin menu. Every state change is written to the audit log.</p>`)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Help", topNav, body)
}
