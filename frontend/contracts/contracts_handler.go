package contracts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"

	sessioncontext "palletrack/frontend/shared/context"
	"palletrack/frontend/shared/nav"
	"palletrack/infrastructure/audit"
	"palletrack/infrastructure/cache"
	contractinfra "palletrack/infrastructure/contract"
	"palletrack/infrastructure/rbac"
	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

func ContractsPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := contractinfra.NormalizeListFilter(r.URL.Query().Get("filter"))
		contracts, err := contractinfra.List(r.Context(), db, filter)
		if err != nil {
			http.Error(w, "failed to load contracts", http.StatusInternalServerError)
			return
		}

		contractIDs := make([]string, 0, len(contracts))
		for _, c := range contracts {
			contractIDs = append(contractIDs, c.ID)
		}
		palletCountsByContractID, err := contractinfra.PalletCountsByContractIDs(r.Context(), db, contractIDs)
		if err != nil {
			http.Error(w, "failed to load contract pallet counts", http.StatusInternalServerError)
			return
		}

		currentContractID := ""
		isAdmin := false
		topNav := nav.TopNavData{}
		if session, ok := sessioncontext.GetSessionFromContext(r.Context()); ok {
			if session.ActiveContractID != nil {
				currentContractID = *session.ActiveContractID
			}
			isAdmin = hasRole(session.UserRoles, rbac.RoleAdmin)
			topNav = nav.BuildTopNavData(session)
		}

		rows := make([]ContractRow, 0, len(contracts))
		for _, c := range contracts {
			counts := palletCountsByContractID[c.ID]
			rows = append(rows, ContractRow{
				ID:              c.ID,
				Name:            c.Name,
				ClientName:      c.ClientName,
				Code:            c.Code,
				Status:          c.Status,
				OpenPallets:     counts.OpenCount,
				MovingPallets:   counts.InTransitCount,
				FinishedPallets: counts.FinalizedCount,
				IsCurrent:       currentContractID != "" && currentContractID == c.ID,
			})
		}

		data := PageData{
			Filter:  filter,
			IsAdmin: isAdmin,
			Message: strings.TrimSpace(r.URL.Query().Get("status")),
			Rows:    rows,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := ContractsPage(data, topNav).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render contracts page", http.StatusInternalServerError)
			return
		}
	}
}

func CreateContractCommandHandler(db *sqlite.DB, sessionCache *cache.UserSessionCache, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Invalid form data"), http.StatusSeeOther)
			return
		}

		created, err := contractinfra.Create(r.Context(), db, contractinfra.CreateInput{
			Name:       strings.TrimSpace(r.FormValue("name")),
			ClientName: strings.TrimSpace(r.FormValue("client_name")),
			Code:       strings.TrimSpace(r.FormValue("code")),
			Status:     strings.TrimSpace(r.FormValue("status")),
		})
		if err != nil {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape(err.Error()), http.StatusSeeOther)
			return
		}

		sessionUserID := int64(0)
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if ok {
			sessionUserID = session.UserID
			if err := setSessionActiveContract(r.Context(), db, sessionCache, session, &created.ID); err != nil {
				http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Contract created, but failed to set active contract"), http.StatusSeeOther)
				return
			}
		}
		if err := writeContractAudit(r.Context(), db, auditSvc, sessionUserID, "contract.create", created.ID, nil, created); err != nil {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Contract created, but failed to write audit log"), http.StatusSeeOther)
			return
		}

		http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Contract created: "+created.Name), http.StatusSeeOther)
	}
}

func ActivateContractCommandHandler(db *sqlite.DB, sessionCache *cache.UserSessionCache, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID := strings.TrimSpace(chi.URLParam(r, "id"))
		if contractID == "" {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Invalid contract id"), http.StatusSeeOther)
			return
		}
		contract, err := contractinfra.LoadByID(r.Context(), db, contractID)
		if err != nil {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Contract not found"), http.StatusSeeOther)
			return
		}

		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		var sessionUserID int64
		var beforeActiveContractID *string
		if ok {
			sessionUserID = session.UserID
			beforeActiveContractID = session.ActiveContractID
			if err := setSessionActiveContract(r.Context(), db, sessionCache, session, &contractID); err != nil {
				http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Failed to set active contract"), http.StatusSeeOther)
				return
			}
		}
		before := map[string]any{
			"active_contract_id": nullableContractID(beforeActiveContractID),
		}
		after := map[string]any{
			"active_contract_id": contractID,
			"contract_name":      contract.Name,
			"contract_status":    contract.Status,
		}
		if err := writeContractAudit(r.Context(), db, auditSvc, sessionUserID, "contract.activate", contractID, before, after); err != nil {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Contract activated, but failed to write audit log"), http.StatusSeeOther)
			return
		}

		http.Redirect(w, r, "/depot/pallets", http.StatusSeeOther)
	}
}

func UpdateContractStatusCommandHandler(db *sqlite.DB, sessionCache *cache.UserSessionCache, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Invalid form data"), http.StatusSeeOther)
			return
		}
		contractID := strings.TrimSpace(chi.URLParam(r, "id"))
		if contractID == "" {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Invalid contract id"), http.StatusSeeOther)
			return
		}

		contractBefore, err := contractinfra.LoadByID(r.Context(), db, contractID)
		if err != nil {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Contract not found"), http.StatusSeeOther)
			return
		}

		status := contractinfra.NormalizeStatus(r.FormValue("status"))
		if err := contractinfra.SetStatus(r.Context(), db, contractID, status); err != nil {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Failed to update contract status"), http.StatusSeeOther)
			return
		}

		sessionUserID := int64(0)
		if session, ok := sessioncontext.GetSessionFromContext(r.Context()); ok {
			sessionUserID = session.UserID
		}
		if err := writeContractAudit(
			r.Context(),
			db,
			auditSvc,
			sessionUserID,
			"contract.status",
			contractID,
			map[string]any{"status": contractBefore.Status},
			map[string]any{"status": status},
		); err != nil {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Contract status updated, but failed to write audit log"), http.StatusSeeOther)
			return
		}

		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if ok && status == contractinfra.StatusArchived && session.ActiveContractID != nil && *session.ActiveContractID == contractID {
			nextID, err := contractinfra.ResolveSessionActiveContractID(r.Context(), db, nil)
			if err != nil {
				http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Contract status updated, but failed to resolve next active contract"), http.StatusSeeOther)
				return
			}
			if err := setSessionActiveContract(r.Context(), db, sessionCache, session, nextID); err != nil {
				http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Contract status updated, but failed to update session contract"), http.StatusSeeOther)
				return
			}
		}

		filter := contractinfra.NormalizeListFilter(r.FormValue("filter"))
		http.Redirect(w, r, "/depot/contracts?filter="+url.QueryEscape(filter)+"&status="+url.QueryEscape(fmt.Sprintf("Contract status set to %s", status)), http.StatusSeeOther)
	}
}

func setSessionActiveContract(ctx context.Context, db *sqlite.DB, sessionCache *cache.UserSessionCache, session models.Session, contractID *string) error {
	if err := contractinfra.SetSessionActiveContractID(ctx, db, session.ID, contractID); err != nil {
		return err
	}
	session.ActiveContractID = contractID
	if sessionCache != nil {
		sessionCache.AddSession(session)
	}
	return nil
}

func writeContractAudit(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, userID int64, action, entityID string, before, after any) error {
	if auditSvc == nil || userID <= 0 {
		return nil
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return auditSvc.Write(ctx, tx, userID, action, "contracts", entityID, before, after)
	})
}

func nullableContractID(contractID *string) any {
	if contractID == nil {
		return nil
	}
	return *contractID
}

func hasRole(userRoles []string, role string) bool {
	for _, userRole := range userRoles {
		if userRole == role {
			return true
		}
	}
	return false
}
