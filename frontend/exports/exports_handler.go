package exports

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	sessioncontext "palletrack/frontend/shared/context"
	"palletrack/frontend/shared/nav"
	contractinfra "palletrack/infrastructure/contract"
	"palletrack/infrastructure/sqlite"
)

func ExportsPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, ok := requestedContractID(r)
		if !ok {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Select a contract first"), http.StatusSeeOther)
			return
		}
		contract, err := contractinfra.LoadByID(r.Context(), db, contractID)
		if err != nil {
			http.Redirect(w, r, "/depot/contracts?status="+url.QueryEscape("Selected contract not found"), http.StatusSeeOther)
			return
		}
		contracts, err := contractinfra.List(r.Context(), db, "all")
		if err != nil {
			http.Error(w, "failed to load contracts", http.StatusInternalServerError)
			return
		}
		options := make([]ContractOption, 0, len(contracts))
		for _, c := range contracts {
			options = append(options, ContractOption{
				ID:       c.ID,
				Label:    fmt.Sprintf("%s (%s) - %s", c.Name, c.ClientName, c.Status),
				Selected: c.ID == contractID,
			})
		}

		session, _ := sessioncontext.GetSessionFromContext(r.Context())
		topNav := nav.BuildTopNavData(session)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := ExportsPage(PageData{
			ContractID:     contract.ID,
			ContractName:   contract.Name,
			ClientName:     contract.ClientName,
			ContractStatus: contract.Status,
			Contracts:      options,
		}, topNav).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render exports page", http.StatusInternalServerError)
			return
		}
	}
}

// ReceiptComparisonsCSVHandler exports the discrepancy lines of one receipt.
func ReceiptComparisonsCSVHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, ok := requestedContractID(r)
		if !ok {
			http.Error(w, "no contract selected", http.StatusForbidden)
			return
		}
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			http.Error(w, "invalid receipt id", http.StatusBadRequest)
			return
		}
		belongs, err := receiptBelongsToContract(r.Context(), db, contractID, id)
		if err != nil {
			http.Error(w, "failed to validate receipt contract", http.StatusInternalServerError)
			return
		}
		if !belongs {
			http.Error(w, "receipt not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=receipt-"+id+"-comparisons.csv")
		if err := writeComparisonsCSV(r.Context(), db, w, contractID, &id); err != nil {
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
		if err := recordExportRun(r.Context(), db, sessionUserIDFromContext(r), &contractID, exportTypeReceiptComparisons(id)); err != nil {
			slog.Error("record export run failed", slog.String("type", exportTypeReceiptComparisons(id)), slog.Any("err", err))
		}
	}
}

func ComparisonsExportCSVHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, ok := requestedContractID(r)
		if !ok {
			http.Error(w, "no contract selected", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=comparisons.csv")
		if err := writeComparisonsCSV(r.Context(), db, w, contractID, nil); err != nil {
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
		if err := recordExportRun(r.Context(), db, sessionUserIDFromContext(r), &contractID, "comparisons_csv"); err != nil {
			slog.Error("record export run failed", slog.String("type", "comparisons_csv"), slog.Any("err", err))
		}
	}
}

func PalletStatusCSVHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, ok := requestedContractID(r)
		if !ok {
			http.Error(w, "no contract selected", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=pallet-status.csv")
		if err := writePalletStatusCSV(r.Context(), db, w, contractID); err != nil {
			http.Error(w, "failed to export status csv", http.StatusInternalServerError)
			return
		}
		if err := recordExportRun(r.Context(), db, sessionUserIDFromContext(r), &contractID, "pallet_status_csv"); err != nil {
			slog.Error("record export run failed", slog.String("type", "pallet_status_csv"), slog.Any("err", err))
		}
	}
}

func ReceiptsExportCSVHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, ok := requestedContractID(r)
		if !ok {
			http.Error(w, "no contract selected", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=receipts.csv")
		if err := writeReceiptsCSV(r.Context(), db, w, contractID); err != nil {
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
		if err := recordExportRun(r.Context(), db, sessionUserIDFromContext(r), &contractID, "receipts_csv"); err != nil {
			slog.Error("record export run failed", slog.String("type", "receipts_csv"), slog.Any("err", err))
		}
	}
}

func sessionUserIDFromContext(r *http.Request) *int64 {
	session, ok := sessioncontext.GetSessionFromContext(r.Context())
	if !ok || session.UserID <= 0 {
		return nil
	}
	id := session.UserID
	return &id
}

func activeContractIDFromContext(r *http.Request) (string, bool) {
	session, ok := sessioncontext.GetSessionFromContext(r.Context())
	if !ok || session.ActiveContractID == nil || *session.ActiveContractID == "" {
		return "", false
	}
	return *session.ActiveContractID, true
}

// requestedContractID honors an explicit ?contract_id= override, falling
// back to the session's active contract.
func requestedContractID(r *http.Request) (string, bool) {
	if raw := strings.TrimSpace(r.URL.Query().Get("contract_id")); raw != "" {
		return raw, true
	}
	return activeContractIDFromContext(r)
}
