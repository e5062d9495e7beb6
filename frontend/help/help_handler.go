package help

import (
	"net/http"

	sessioncontext "palletrack/frontend/shared/context"
	"palletrack/frontend/shared/nav"
	"palletrack/infrastructure/rbac"
)

type PageData struct {
	IsAdmin    bool
	IsOperator bool
	IsClient   bool
}

func HelpPageQueryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		data := PageData{
			IsAdmin:    session.User.Role == rbac.RoleAdmin,
			IsOperator: session.User.Role == rbac.RoleOperator,
			IsClient:   session.User.Role == rbac.RoleClient,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := HelpPage(data, nav.BuildTopNavData(session)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render help page", http.StatusInternalServerError)
			return
		}
	}
}
