package manifests

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
)

// ManifestsPage renders the manifest list for the active contract.
func ManifestsPage(data PageData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Manifests</h1>`)
		if data.Message != "" {
			fmt.Fprintf(&b, `<p class="flash">%s</p>`, html.Esc(data.Message))
		}
		b.WriteString(`<p class="filters">`)
		for _, s := range []string{"", "draft", "loaded", "in_transit", "delivered"} {
			label := s
			href := "/depot/manifests"
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

		b.WriteString(`<table><thead><tr><th>Number</th><th>Route</th><th>Driver</th><th>Pallets</th><th>Status</th><th>Created</th></tr></thead><tbody>`)
		for _, row := range data.Rows {
			driver := row.Driver
			if driver == "" {
				driver = "-"
			}
			fmt.Fprintf(&b, `<tr><td><a href="/depot/manifests/%s">%s</a></td><td>%s</td><td>%s</td><td>%d</td><td class="status-%s">%s</td><td>%s</td></tr>`,
				html.Esc(row.ID), html.Esc(row.ManifestNumber), html.Esc(row.Route), html.Esc(driver),
				row.PalletCount, html.Esc(row.Status), html.Esc(row.Status), html.Esc(row.CreatedAt))
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Manifests", topNav, body)
}

// ManifestDetailPage renders one manifest with its pallets and action buttons.
func ManifestDetailPage(data DetailData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<h1>Manifest %s</h1>`, html.Esc(data.Manifest.ManifestNumber))
		fmt.Fprintf(&b, `<p>Status: <span class="status-%s">%s</span></p>`, html.Esc(data.Manifest.Status), html.Esc(data.Manifest.Status))
		fmt.Fprintf(&b, `<p>Route: %s &rarr; %s</p>`, html.Esc(data.Origin), html.Esc(data.Dest))
		if data.Manifest.DriverName != "" {
			fmt.Fprintf(&b, `<p>Driver: %s`, html.Esc(data.Manifest.DriverName))
			if data.Manifest.VehiclePlate != "" {
				fmt.Fprintf(&b, ` (%s)`, html.Esc(data.Manifest.VehiclePlate))
			}
			b.WriteString(`</p>`)
		}

		b.WriteString(`<table><thead><tr><th>Pallet tag</th><th>Status</th></tr></thead><tbody>`)
		for _, line := range data.Pallets {
			fmt.Fprintf(&b, `<tr><td><a href="/depot/pallets/%s">%s</a></td><td class="status-%s">%s</td></tr>`,
				html.Esc(line.ID), html.Esc(line.TagCode), html.Esc(line.Status), html.Esc(line.Status))
		}
		b.WriteString(`</tbody></table>`)

		for _, action := range []string{"load", "depart", "deliver"} {
			fmt.Fprintf(&b, `<form method="POST" action="/depot/api/manifests/%s/%s" class="inline-form"><button type="submit">%s</button></form>`,
				html.Esc(data.Manifest.ID), action, action)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Manifest "+data.Manifest.ManifestNumber, topNav, body)
}
