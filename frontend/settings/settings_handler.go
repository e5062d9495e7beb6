package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	sessioncontext "palletrack/frontend/shared/context"
	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/audit"
)

func ReconciliationSettingsPageHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessioncontext.GetSessionFromContext(r.Context())
		topNav := nav.BuildTopNavData(session)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		page := reconciliationSettingsPage(store.CriticalDiffThreshold(), store.ManualReviewConfidence(), r.URL.Query().Get("status"), topNav)
		if err := page.Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render settings page", http.StatusInternalServerError)
			return
		}
	}
}

func ReconciliationSettingsUpdateHandler(store *Store, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessioncontext.GetSessionFromContext(r.Context())
		if err := r.ParseForm(); err != nil {
			redirectStatus(w, r, "invalid form")
			return
		}
		threshold, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("critical_diff_threshold")), 10, 64)
		if err != nil {
			redirectStatus(w, r, "threshold must be a number")
			return
		}
		confidence, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("manual_review_confidence")), 10, 64)
		if err != nil {
			redirectStatus(w, r, "confidence must be a number")
			return
		}
		if err := store.SaveCriticalDiffThreshold(r.Context(), auditSvc, session.UserID, threshold); err != nil {
			redirectStatus(w, r, saveErrorMessage(err))
			return
		}
		if err := store.SaveManualReviewConfidence(r.Context(), auditSvc, session.UserID, confidence); err != nil {
			redirectStatus(w, r, saveErrorMessage(err))
			return
		}
		redirectStatus(w, r, "saved")
	}
}

func redirectStatus(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, "/depot/settings/reconciliation?status="+url.QueryEscape(msg), http.StatusSeeOther)
}

func saveErrorMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "save failed"
}

func reconciliationSettingsPage(threshold, confidence int64, status string, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Reconciliation settings</h1>`)
		if status != "" {
			fmt.Fprintf(&b, `<p class="flash">%s</p>`, html.Esc(status))
		}
		b.WriteString(`<form method="POST" action="/depot/api/settings/reconciliation" class="stacked-form">`)
		fmt.Fprintf(&b, `<label>Critical difference threshold <input type="number" name="critical_diff_threshold" min="1" value="%d"></label>`, threshold)
		fmt.Fprintf(&b, `<label>Manual review confidence <input type="number" name="manual_review_confidence" min="0" max="100" value="%d"></label>`, confidence)
		b.WriteString(`<button type="submit">Save</button>`)
		b.WriteString(`</form>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Settings", topNav, body)
}
