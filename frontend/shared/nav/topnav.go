package nav

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"palletrack/models"
)

// TopNavData is shared with page renderers.
type TopNavData struct {
	Username     string
	Role         string
	ContractName string
}

func BuildTopNavData(session models.Session) TopNavData {
	return TopNavData{Username: session.User.Username, Role: session.User.Role}
}

// TopNav renders the shared navigation bar.
func TopNav(data TopNavData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		links := `<a href="/depot/contracts">Contracts</a>` +
			`<a href="/depot/pallets">Pallets</a>` +
			`<a href="/depot/manifests">Manifests</a>` +
			`<a href="/depot/receipts">Receipts</a>` +
			`<a href="/depot/comparisons">Discrepancies</a>`
		if data.Role == "admin" {
			links += `<a href="/depot/qrtags">QR Tags</a>` +
				`<a href="/depot/stock/import">Stock</a>` +
				`<a href="/depot/exports">Exports</a>` +
				`<a href="/depot/admin/users">Users</a>` +
				`<a href="/depot/settings/reconciliation">Settings</a>`
		}
		who := templ.EscapeString(data.Username)
		if data.ContractName != "" {
			who += " · " + templ.EscapeString(data.ContractName)
		}
		_, err := fmt.Fprintf(w,
			`<nav class="topnav"><span class="brand">palletrack</span>%s<span class="who">%s</span><form method="POST" action="/logout"><button type="submit">Logout</button></form></nav>`,
			links, who)
		return err
	})
}
