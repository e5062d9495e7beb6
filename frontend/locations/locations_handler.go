package locations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"

	sessioncontext "palletrack/frontend/shared/context"
	"palletrack/frontend/shared/html"
	"palletrack/frontend/shared/nav"
	"palletrack/frontend/shared/web"
	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/audit"
	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

type CreatePayload struct {
	Code string `json:"code" validate:"required,min=2,max=16"`
	Name string `json:"name" validate:"required,max=120"`
	Kind string `json:"kind" validate:"omitempty,oneof=origin destination both"`
}

type RenamePayload struct {
	Name string `json:"name" validate:"required,max=120"`
}

// LocationsPageQueryHandler renders the warehouse site list.
func LocationsPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		list, err := List(r.Context(), db)
		if err != nil {
			http.Error(w, "failed to load locations", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := LocationsPage(list, nav.BuildTopNavData(session)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render locations page", http.StatusInternalServerError)
			return
		}
	}
}

// CreateLocationCommandHandler registers a new warehouse site.
func CreateLocationCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			web.WriteError(w, apperr.Validation("not signed in"))
			return
		}

		var payload CreatePayload
		if err := web.DecodeValid(r, &payload); err != nil {
			web.WriteError(w, err)
			return
		}

		location, err := Create(r.Context(), db, payload.Code, payload.Name, payload.Kind)
		if err != nil {
			web.WriteError(w, err)
			return
		}

		writeLocationAudit(r.Context(), db, auditSvc, session.UserID, "location.create", location.ID, nil, location)
		web.WriteJSON(w, http.StatusCreated, location)
	}
}

// RenameLocationCommandHandler updates a site's display name.
func RenameLocationCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			web.WriteError(w, apperr.Validation("not signed in"))
			return
		}
		locationID := chi.URLParam(r, "id")

		var payload RenamePayload
		if err := web.DecodeValid(r, &payload); err != nil {
			web.WriteError(w, err)
			return
		}

		before, err := LoadByID(r.Context(), db, locationID)
		if err != nil {
			web.WriteError(w, err)
			return
		}
		if err := Rename(r.Context(), db, locationID, payload.Name); err != nil {
			web.WriteError(w, err)
			return
		}
		after, err := LoadByID(r.Context(), db, locationID)
		if err != nil {
			web.WriteError(w, err)
			return
		}

		writeLocationAudit(r.Context(), db, auditSvc, session.UserID, "location.rename", locationID, before, after)
		web.WriteJSON(w, http.StatusOK, after)
	}
}

// DeleteLocationCommandHandler removes an unused site.
func DeleteLocationCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			web.WriteError(w, apperr.Validation("not signed in"))
			return
		}
		locationID := chi.URLParam(r, "id")

		before, err := LoadByID(r.Context(), db, locationID)
		if err != nil {
			web.WriteError(w, err)
			return
		}
		if err := Delete(r.Context(), db, locationID); err != nil {
			web.WriteError(w, err)
			return
		}

		writeLocationAudit(r.Context(), db, auditSvc, session.UserID, "location.delete", locationID, before, nil)
		web.WriteJSON(w, http.StatusOK, map[string]string{"deleted": locationID})
	}
}

// LocationsPage renders the site table.
func LocationsPage(list []models.Location, topNav nav.TopNavData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Locations</h1>`)
		b.WriteString(`<table><thead><tr><th>Code</th><th>Name</th><th>Kind</th></tr></thead><tbody>`)
		for _, l := range list {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td></tr>`,
				html.Esc(l.Code), html.Esc(l.Name), html.Esc(l.Kind))
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
	return html.Page("Locations", topNav, body)
}

func writeLocationAudit(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, userID int64, action, entityID string, before, after any) {
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return auditSvc.Write(ctx, tx, userID, action, "location", entityID, before, after)
	})
	if err != nil {
		slog.Error("location audit write failed", "action", action, "entity_id", entityID, "error", err)
	}
}
