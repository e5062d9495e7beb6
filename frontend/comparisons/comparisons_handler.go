package comparisons

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"

	"palletrack/frontend/settings"
	sessioncontext "palletrack/frontend/shared/context"
	"palletrack/frontend/shared/nav"
	"palletrack/frontend/shared/web"
	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/audit"
	"palletrack/infrastructure/sqlite"
)

// ComparisonsPageQueryHandler renders the discrepancy list with summary
// stats, optionally scoped to one receipt.
func ComparisonsPageQueryHandler(db *sqlite.DB, thresholds *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		filter := ListFilter{
			ReceiptID: strings.TrimSpace(r.URL.Query().Get("receipt")),
			DiffType:  strings.TrimSpace(r.URL.Query().Get("type")),
			From:      normalizeDay(r.URL.Query().Get("from")),
			To:        normalizeDay(r.URL.Query().Get("to")),
		}
		if session.ActiveContractID != nil {
			filter.ContractID = *session.ActiveContractID
		}
		rows, err := List(r.Context(), db, filter)
		if err != nil {
			http.Error(w, "failed to load comparisons", http.StatusInternalServerError)
			return
		}
		threshold := thresholds.CriticalDiffThreshold()
		for i := range rows {
			rows[i].Critical = IsCritical(rows[i].Difference, threshold)
		}

		stats, err := ComputeStats(r.Context(), db, StatsFilter{
			ContractID: filter.ContractID,
			From:       filter.From,
			To:         filter.To,
		}, 5)
		if err != nil {
			http.Error(w, "failed to load stats", http.StatusInternalServerError)
			return
		}

		data := PageData{
			ReceiptID: filter.ReceiptID,
			TypeFrom:  filter.DiffType,
			From:      filter.From,
			To:        filter.To,
			Message:   strings.TrimSpace(r.URL.Query().Get("message")),
			Rows:      rows,
			Stats:     stats,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := ComparisonsPage(data, nav.BuildTopNavData(session)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render comparisons page", http.StatusInternalServerError)
			return
		}
	}
}

// GenerateCommandHandler reconciles a receipt on demand. Generation is an
// explicit action, deliberately separate from receipt creation.
func GenerateCommandHandler(db *sqlite.DB, auditSvc *audit.Service, thresholds *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			web.WriteError(w, apperr.Validation("not signed in"))
			return
		}

		var payload GeneratePayload
		if err := web.DecodeValid(r, &payload); err != nil {
			web.WriteError(w, err)
			return
		}

		result, err := GenerateForReceipt(r.Context(), db, payload.ReceiptID, thresholds.CriticalDiffThreshold())
		if err != nil {
			web.WriteError(w, err)
			return
		}

		writeComparisonAudit(r.Context(), db, auditSvc, session.UserID, "comparison.generate", payload.ReceiptID, nil, result)
		web.WriteJSON(w, http.StatusCreated, result)
	}
}

// ReclassifyCommandHandler refines one discrepancy to damage or swap.
func ReclassifyCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			web.WriteError(w, apperr.Validation("not signed in"))
			return
		}
		comparisonID := chi.URLParam(r, "id")

		var payload ReclassifyPayload
		if err := web.DecodeValid(r, &payload); err != nil {
			web.WriteError(w, err)
			return
		}

		before, err := LoadByID(r.Context(), db, comparisonID)
		if err != nil {
			web.WriteError(w, err)
			return
		}
		if err := Reclassify(r.Context(), db, comparisonID, payload.DifferenceType, strings.TrimSpace(payload.Reason)); err != nil {
			web.WriteError(w, err)
			return
		}
		after, err := LoadByID(r.Context(), db, comparisonID)
		if err != nil {
			web.WriteError(w, err)
			return
		}

		writeComparisonAudit(r.Context(), db, auditSvc, session.UserID, "comparison.reclassify", comparisonID, before, after)
		web.WriteJSON(w, http.StatusOK, after)
	}
}

// StatsQueryHandler serves the aggregate numbers as JSON for dashboards,
// scoped to the session's active contract and an optional from/to window.
func StatsQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			web.WriteError(w, apperr.Validation("not signed in"))
			return
		}

		filter := StatsFilter{
			From: normalizeDay(r.URL.Query().Get("from")),
			To:   normalizeDay(r.URL.Query().Get("to")),
		}
		if session.ActiveContractID != nil {
			filter.ContractID = *session.ActiveContractID
		}
		stats, err := ComputeStats(r.Context(), db, filter, 10)
		if err != nil {
			web.WriteError(w, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, stats)
	}
}

// normalizeDay keeps a yyyy-mm-dd query value; anything else means no bound.
func normalizeDay(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if _, err := time.Parse("2006-01-02", v); err != nil {
		return ""
	}
	return v
}

func writeComparisonAudit(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, userID int64, action, entityID string, before, after any) {
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return auditSvc.Write(ctx, tx, userID, action, "comparison", entityID, before, after)
	})
	if err != nil {
		slog.Error("comparison audit write failed", "action", action, "entity_id", entityID, "error", err)
	}
}
