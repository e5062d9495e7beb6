package qrtags

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
)

// TagsPage renders the QR tag list with the batch generation form.
func TagsPage(data PageData, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>QR Tags</h1>`)
		if data.Message != "" {
			fmt.Fprintf(&b, `<p class="flash">%s</p>`, html.Esc(data.Message))
		}
		fmt.Fprintf(&b, `<p class="counts">%d free · %d linked</p>`, data.FreeCount, data.LinkedCount)

		b.WriteString(`<form id="batch-form" class="inline-form">` +
			`<label>Prefix <input name="prefix" value="TAG" maxlength="8" required></label>` +
			`<label>Start <input name="start" type="number" value="1" min="0"></label>` +
			`<label>Count <input name="count" type="number" value="10" min="1" max="500"></label>` +
			`<button type="submit">Generate</button></form>` +
			`<p id="batch-result"></p>`)

		b.WriteString(`<p class="filters"><a href="/depot/qrtags">All</a> <a href="/depot/qrtags?status=free">Free</a> <a href="/depot/qrtags?status=linked">Linked</a> <a href="/depot/qrtags/labels.pdf">Print free labels</a></p>`)

		b.WriteString(`<table><thead><tr><th>Code</th><th>Status</th><th>Pallet</th></tr></thead><tbody>`)
		for _, row := range data.Rows {
			pallet := "-"
			if row.LinkedPallet != "" {
				pallet = fmt.Sprintf(`<a href="/depot/pallets/%s">%s</a>`, html.Esc(row.LinkedPallet), html.Esc(row.LinkedPallet))
			}
			fmt.Fprintf(&b, `<tr><td>%s</td><td class="status-%s">%s</td><td>%s</td></tr>`,
				html.Esc(row.Code), html.Esc(row.Status), html.Esc(row.Status), pallet)
		}
		b.WriteString(`</tbody></table>`)

		b.WriteString(batchFormScript())
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("QR Tags", topNav, body)
}

func batchFormScript() string {
	return `<script>
document.getElementById("batch-form").addEventListener("submit", async function (e) {
  e.preventDefault();
  const form = e.target;
  const payload = {
    prefix: form.prefix.value,
    start: parseInt(form.start.value, 10),
    count: parseInt(form.count.value, 10)
  };
  const resp = await fetch("/depot/api/qrtags/batch", {
    method: "POST",
    headers: {"Content-Type": "application/json", "X-CSRF-Token": getCSRFCookie()},
    body: JSON.stringify(payload)
  });
  const out = document.getElementById("batch-result");
  if (resp.ok) {
    const data = await resp.json();
    out.textContent = "Generated " + data.generated.length + ", skipped " + data.skipped.length;
    window.location.reload();
  } else {
    const data = await resp.json().catch(() => ({error: resp.statusText}));
    out.textContent = "Error: " + data.error;
  }
});
function getCSRFCookie() {
  const prefix = "X-CSRF-Token=";
  for (const part of (document.cookie || "").split(";")) {
    const c = part.trim();
    if (c.indexOf(prefix) === 0) return decodeURIComponent(c.substring(prefix.length));
  }
  return "";
}
</script>`
}
