package qrtags

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/uptrace/bun"

	sessioncontext "palletrack/frontend/shared/context"
	"palletrack/frontend/shared/nav"
	"palletrack/frontend/shared/web"
	"palletrack/infrastructure/audit"
	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

func writeBatchAudit(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, userID int64, payload BatchGeneratePayload, result BatchResult) error {
	if auditSvc == nil {
		return nil
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return auditSvc.Write(ctx, tx, userID, "qrtag.batch_generate", "qr_tag", payload.Prefix, payload, result)
	})
}

// TagsPageQueryHandler renders the QR tag list page.
func TagsPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := strings.TrimSpace(r.URL.Query().Get("status"))
		if filter != models.TagFree && filter != models.TagLinked {
			filter = ""
		}

		tags, err := List(r.Context(), db, filter, 500)
		if err != nil {
			http.Error(w, "failed to load qr tags", http.StatusInternalServerError)
			return
		}
		free, linked, err := CountByStatus(r.Context(), db)
		if err != nil {
			http.Error(w, "failed to load tag counts", http.StatusInternalServerError)
			return
		}

		rows := make([]TagRow, 0, len(tags))
		for _, t := range tags {
			row := TagRow{ID: t.ID, Code: t.Code, Status: t.Status}
			if t.LinkedPalletID != nil {
				row.LinkedPallet = *t.LinkedPalletID
			}
			rows = append(rows, row)
		}

		data := PageData{
			FreeCount:   free,
			LinkedCount: linked,
			Filter:      filter,
			Message:     strings.TrimSpace(r.URL.Query().Get("message")),
			Rows:        rows,
		}

		topNav := nav.TopNavData{}
		if session, ok := sessioncontext.GetSessionFromContext(r.Context()); ok {
			topNav = nav.BuildTopNavData(session)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := TagsPage(data, topNav).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render qr tags page", http.StatusInternalServerError)
			return
		}
	}
}

// BatchGenerateCommandHandler creates a batch of sequential tags.
func BatchGenerateCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload BatchGeneratePayload
		if err := web.DecodeValid(r, &payload); err != nil {
			web.WriteError(w, err)
			return
		}

		result, err := BatchGenerate(r.Context(), db, payload.Prefix, payload.Start, payload.Count)
		if err != nil {
			web.WriteError(w, err)
			return
		}

		var userID int64
		if session, ok := sessioncontext.GetSessionFromContext(r.Context()); ok {
			userID = session.UserID
		}
		if err := writeBatchAudit(r.Context(), db, auditSvc, userID, payload, result); err != nil {
			slog.Error("qr tag batch audit failed", slog.Any("err", err))
		}

		web.WriteJSON(w, http.StatusCreated, result)
	}
}

// LabelSheetQueryHandler renders a PDF sheet of printable tag labels for
// the requested codes (all free tags when no codes are given).
func LabelSheetQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		codes := splitCodes(r.URL.Query().Get("codes"))

		var tags []models.QrTag
		var err error
		if len(codes) == 0 {
			tags, err = List(r.Context(), db, models.TagFree, 500)
		} else {
			tags = make([]models.QrTag, 0, len(codes))
			for _, code := range codes {
				tag, loadErr := LoadByCode(r.Context(), db, code)
				if loadErr != nil {
					err = loadErr
					break
				}
				tags = append(tags, tag)
			}
		}
		if err != nil {
			web.WriteError(w, err)
			return
		}
		if len(tags) == 0 {
			http.Error(w, "no tags to print", http.StatusNotFound)
			return
		}

		labels := make([]TagLabelData, 0, len(tags))
		for _, t := range tags {
			labels = append(labels, TagLabelData{Code: t.Code, Status: t.Status})
		}

		pdfBytes, err := renderTagLabelsPDF(labels, time.Now())
		if err != nil {
			http.Error(w, "failed to build label pdf", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=qr-tags-%d.pdf", len(labels)))
		_, _ = w.Write(pdfBytes)
	}
}

func splitCodes(raw string) []string {
	parts := strings.Split(raw, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}
