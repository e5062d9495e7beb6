package receipts

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/uptrace/bun"

	sessioncontext "palletrack/frontend/shared/context"
	"palletrack/frontend/shared/nav"
	"palletrack/frontend/shared/web"
	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/audit"
	"palletrack/infrastructure/sqlite"
)

// ReceiptsPageQueryHandler renders the receipt list.
func ReceiptsPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		status := strings.TrimSpace(r.URL.Query().Get("status"))
		rows, err := List(r.Context(), db, status)
		if err != nil {
			http.Error(w, "failed to load receipts", http.StatusInternalServerError)
			return
		}

		data := PageData{
			Filter:  status,
			Message: strings.TrimSpace(r.URL.Query().Get("message")),
			Rows:    rows,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := ReceiptsPage(data, nav.BuildTopNavData(session)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render receipts page", http.StatusInternalServerError)
			return
		}
	}
}

// CreateReceiptCommandHandler runs receipt finalization for a pallet or a
// whole manifest.
func CreateReceiptCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
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

		result, err := Create(r.Context(), db, CreateInput{
			PalletID:     payload.PalletID,
			ManifestID:   payload.ManifestID,
			LocationID:   payload.LocationID,
			ReceivedBy:   session.UserID,
			AIConfidence: payload.AIConfidence,
			Notes:        strings.TrimSpace(payload.Notes),
		})
		if err != nil {
			web.WriteError(w, err)
			return
		}

		writeReceiptAudit(r.Context(), db, auditSvc, session.UserID, "receipt.create", result.Receipt.ID, nil, result)
		web.WriteJSON(w, http.StatusCreated, result)
	}
}

func writeReceiptAudit(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, userID int64, action, receiptID string, before, after any) {
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return auditSvc.Write(ctx, tx, userID, action, "receipt", receiptID, before, after)
	})
	if err != nil {
		slog.Error("receipt audit write failed", "action", action, "receipt_id", receiptID, "error", err)
	}
}
