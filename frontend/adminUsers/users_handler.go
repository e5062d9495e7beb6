package adminusers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	sessioncontext "palletrack/frontend/shared/context"
	"palletrack/frontend/shared/nav"
	contractinfra "palletrack/infrastructure/contract"
	"palletrack/infrastructure/sqlite"
)

// UsersPageQueryHandler renders the admin users list page.
func UsersPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		data, err := LoadUsersPageData(r.Context(), db)
		if err != nil {
			slog.Error("admin users: failed to load data", slog.Any("err", err))
			http.Error(w, "failed to load users", http.StatusInternalServerError)
			return
		}

		data.Status = r.URL.Query().Get("status")
		data.ErrorMessage = r.URL.Query().Get("error")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := UsersListPage(data, nav.BuildTopNavData(session)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render users page", http.StatusInternalServerError)
			return
		}
	}
}

func CreateUserCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessioncontext.GetSessionFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, "/depot/admin/users?error="+url.QueryEscape("invalid form data"), http.StatusSeeOther)
			return
		}

		username := strings.TrimSpace(r.FormValue("username"))
		password := strings.TrimSpace(r.FormValue("password"))
		role := strings.TrimSpace(r.FormValue("role"))
		clientContractIDs := parseClientContractIDs(r, "client_contract_ids")

		if err := CreateUser(r.Context(), db, username, password, role, clientContractIDs); err != nil {
			switch {
			case errors.Is(err, ErrUsernameRequired),
				errors.Is(err, ErrPasswordRequired),
				errors.Is(err, ErrInvalidRole),
				errors.Is(err, ErrClientContractRequired),
				errors.Is(err, ErrUsernameExists):
				http.Redirect(w, r, "/depot/admin/users?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
				return
			default:
				// Password policy errors and other validation messages are safe to return as-is.
				http.Redirect(w, r, "/depot/admin/users?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
				return
			}
		}

		http.Redirect(w, r, "/depot/admin/users?status="+url.QueryEscape("user created"), http.StatusSeeOther)
	}
}

func UpdateClientContractAccessCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessioncontext.GetSessionFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, "/depot/admin/users?error="+url.QueryEscape("invalid form data"), http.StatusSeeOther)
			return
		}
		userID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("client_user_id")), 10, 64)
		if err != nil || userID <= 0 {
			http.Redirect(w, r, "/depot/admin/users?error="+url.QueryEscape("invalid client user"), http.StatusSeeOther)
			return
		}
		contractIDs := parseClientContractIDs(r, "client_contract_ids_update")
		if err := contractinfra.SetClientContractAccess(r.Context(), db, userID, contractIDs); err != nil {
			http.Redirect(w, r, "/depot/admin/users?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/depot/admin/users?status="+url.QueryEscape("client contract access updated"), http.StatusSeeOther)
	}
}

func parseClientContractIDs(r *http.Request, field string) []string {
	values := r.Form[field]
	ids := make([]string, 0, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		ids = append(ids, raw)
	}
	return ids
}
