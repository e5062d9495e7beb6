package stock

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	sessioncontext "palletrack/frontend/shared/context"
	"palletrack/frontend/shared/nav"
	"palletrack/infrastructure/audit"
	contractinfra "palletrack/infrastructure/contract"
	"palletrack/infrastructure/sqlite"
)

func StockImportPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, ok := activeContractIDFromSession(r)
		if !ok {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Select a contract first"), http.StatusSeeOther)
			return
		}

		contract, err := contractinfra.LoadByID(r.Context(), db, contractID)
		if err != nil {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Active contract not found"), http.StatusSeeOther)
			return
		}

		message := r.URL.Query().Get("status")
		if message == "" {
			message = "Upload CSV with header: sku,description"
		}
		rows, err := ListStockRecords(r.Context(), db, contractID)
		if err != nil {
			http.Error(w, "failed to load stock records", http.StatusInternalServerError)
			return
		}

		data := PageData{
			ContractID:     contract.ID,
			ContractName:   contract.Name,
			ClientName:     contract.ClientName,
			ContractStatus: contract.Status,
			Message:        message,
			Records:        rows,
		}

		topNav := nav.TopNavData{}
		if session, ok := sessioncontext.GetSessionFromContext(r.Context()); ok {
			topNav = nav.BuildTopNavData(session)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := StockImportPage(data, topNav).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render stock import page", http.StatusInternalServerError)
			return
		}
	}
}

func StockImportCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, ok := activeContractIDFromSession(r)
		if !ok {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Select a contract first"), http.StatusSeeOther)
			return
		}
		isActive, err := contractinfra.IsActiveByID(r.Context(), db, contractID)
		if err != nil {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Failed to load contract"), http.StatusSeeOther)
			return
		}
		if !isActive {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Archived contracts are read-only"), http.StatusSeeOther)
			return
		}

		session, _ := sessioncontext.GetSessionFromContext(r.Context())
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Error: invalid upload"), http.StatusSeeOther)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Error: file is required"), http.StatusSeeOther)
			return
		}
		defer file.Close()

		summary, err := ImportCSV(r.Context(), db, auditSvc, session.UserID, contractID, file)
		if err != nil {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Error: "+err.Error()), http.StatusSeeOther)
			return
		}

		status := fmt.Sprintf("Imported: %d inserted, %d updated, %d errors", summary.Inserted, summary.Updated, summary.Errors)
		http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape(status), http.StatusSeeOther)
	}
}

func StockDeleteItemCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, ok := activeContractIDFromSession(r)
		if !ok {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Select a contract first"), http.StatusSeeOther)
			return
		}
		isActive, err := contractinfra.IsActiveByID(r.Context(), db, contractID)
		if err != nil {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Failed to load contract"), http.StatusSeeOther)
			return
		}
		if !isActive {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Archived contracts are read-only"), http.StatusSeeOther)
			return
		}

		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Invalid stock item id"), http.StatusSeeOther)
			return
		}

		session, _ := sessioncontext.GetSessionFromContext(r.Context())
		deleted, failed, err := DeleteStockItems(r.Context(), db, auditSvc, session.UserID, []string{id})
		if err != nil {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Failed to delete stock record"), http.StatusSeeOther)
			return
		}

		status := "No stock record deleted"
		if deleted == 1 {
			status = "Deleted 1 stock record"
		} else if failed > 0 {
			status = "Stock record could not be deleted (in use or missing)"
		}
		http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape(status), http.StatusSeeOther)
	}
}

func StockDeleteItemsCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, ok := activeContractIDFromSession(r)
		if !ok {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Select a contract first"), http.StatusSeeOther)
			return
		}
		isActive, err := contractinfra.IsActiveByID(r.Context(), db, contractID)
		if err != nil {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Failed to load contract"), http.StatusSeeOther)
			return
		}
		if !isActive {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Archived contracts are read-only"), http.StatusSeeOther)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Invalid stock delete form"), http.StatusSeeOther)
			return
		}
		ids := parseIDs(r.Form["item_id"])
		if len(ids) == 0 {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Select at least one stock record"), http.StatusSeeOther)
			return
		}

		session, _ := sessioncontext.GetSessionFromContext(r.Context())
		deleted, failed, err := DeleteStockItems(r.Context(), db, auditSvc, session.UserID, ids)
		if err != nil {
			http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape("Failed to delete stock records"), http.StatusSeeOther)
			return
		}

		status := fmt.Sprintf("Deleted %d stock records", deleted)
		if deleted == 0 && failed > 0 {
			status = "No stock records deleted (in use or missing)"
		} else if failed > 0 {
			status = fmt.Sprintf("Deleted %d stock records, %d could not be deleted", deleted, failed)
		}
		http.Redirect(w, r, "/depot/stock/import?status="+url.QueryEscape(status), http.StatusSeeOther)
	}
}

func parseIDs(values []string) []string {
	ids := make([]string, 0, len(values))
	for _, raw := range values {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func activeContractIDFromSession(r *http.Request) (string, bool) {
	session, ok := sessioncontext.GetSessionFromContext(r.Context())
	if !ok || session.ActiveContractID == nil || *session.ActiveContractID == "" {
		return "", false
	}
	return *session.ActiveContractID, true
}
