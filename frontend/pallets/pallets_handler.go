package pallets

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
	"palletrack/infrastructure/vision"
	"palletrack/models"
)

// PalletsPageQueryHandler renders the pallet list for the active contract.
func PalletsPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		contractID := ""
		if session.ActiveContractID != nil {
			contractID = *session.ActiveContractID
		}

		status := strings.TrimSpace(r.URL.Query().Get("status"))
		list, err := List(r.Context(), db, contractID, status)
		if err != nil {
			http.Error(w, "failed to load pallets", http.StatusInternalServerError)
			return
		}

		rows, err := buildPalletRows(r.Context(), db, list)
		if err != nil {
			http.Error(w, "failed to load pallet details", http.StatusInternalServerError)
			return
		}

		data := PageData{
			Filter:  status,
			Message: strings.TrimSpace(r.URL.Query().Get("message")),
			Rows:    rows,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := PalletsPage(data, nav.BuildTopNavData(session)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render pallets page", http.StatusInternalServerError)
			return
		}
	}
}

// PalletDetailQueryHandler renders one pallet with its SKU lines.
func PalletDetailQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		palletID := chi.URLParam(r, "id")
		detail, err := LoadDetail(r.Context(), db, palletID)
		if err != nil {
			web.WriteError(w, err)
			return
		}

		topNav := nav.TopNavData{}
		if session, ok := sessioncontext.GetSessionFromContext(r.Context()); ok {
			topNav = nav.BuildTopNavData(session)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := PalletDetailPage(detail, topNav).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render pallet page", http.StatusInternalServerError)
			return
		}
	}
}

// ContentLabelQueryHandler renders the printable content label for one
// pallet: tag barcode plus the SKU lines with origin counts.
func ContentLabelQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		palletID := chi.URLParam(r, "id")
		detail, err := LoadDetail(r.Context(), db, palletID)
		if err != nil {
			web.WriteError(w, err)
			return
		}

		pdfBytes, err := renderContentLabelPDF(detail, time.Now())
		if err != nil {
			slog.Error("render pallet label failed", "pallet_id", palletID, "error", err)
			http.Error(w, "failed to render label", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "inline; filename=pallet-"+detail.TagCode+".pdf")
		_, _ = w.Write(pdfBytes)
	}
}

// CreatePalletCommandHandler creates a pallet against a scanned tag code.
func CreatePalletCommandHandler(db *sqlite.DB, auditSvc *audit.Service, thresholds *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok || session.ActiveContractID == nil {
			web.WriteError(w, apperr.Validation("no active contract selected"))
			return
		}

		var payload CreatePayload
		if err := web.DecodeValid(r, &payload); err != nil {
			web.WriteError(w, err)
			return
		}

		pallet, err := Create(r.Context(), db, CreateInput{
			TagCode:               strings.TrimSpace(payload.TagCode),
			ContractID:            *session.ActiveContractID,
			OriginLocationID:      payload.OriginLocationID,
			DestinationLocationID: payload.DestinationLocationID,
			AIConfidence:          payload.AIConfidence,
			CreatedBy:             session.UserID,
			ManualReviewBelow:     thresholds.ManualReviewConfidence(),
		})
		if err != nil {
			web.WriteError(w, err)
			return
		}

		writePalletAudit(r.Context(), db, auditSvc, session.UserID, "pallet.create", pallet.ID, nil, pallet)
		web.WriteJSON(w, http.StatusCreated, pallet)
	}
}

// TransitionCommandHandler serves the guarded lifecycle moves exposed over
// HTTP: seal, receive, finalize, cancel. A guard miss is a 409, not a 500.
func TransitionCommandHandler(db *sqlite.DB, auditSvc *audit.Service, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		palletID := chi.URLParam(r, "id")

		before, err := LoadByID(r.Context(), db, palletID)
		if err != nil {
			web.WriteError(w, err)
			return
		}

		var ok bool
		switch action {
		case "seal":
			ok, err = Seal(r.Context(), db, palletID)
		case "receive":
			ok, err = MarkReceived(r.Context(), db, palletID)
		case "finalize":
			ok, err = Finalize(r.Context(), db, palletID)
		case "cancel":
			ok, err = Cancel(r.Context(), db, palletID)
		default:
			web.WriteError(w, apperr.Validation("unknown action %s", action))
			return
		}
		if err != nil {
			web.WriteError(w, err)
			return
		}
		if !ok {
			web.WriteError(w, apperr.Conflict("pallet %s cannot %s from status %s", palletID, action, before.Status))
			return
		}

		after, err := LoadByID(r.Context(), db, palletID)
		if err != nil {
			web.WriteError(w, err)
			return
		}
		var userID int64
		if session, sok := sessioncontext.GetSessionFromContext(r.Context()); sok {
			userID = session.UserID
		}
		writePalletAudit(r.Context(), db, auditSvc, userID, "pallet."+action, palletID, before, after)
		web.WriteJSON(w, http.StatusOK, after)
	}
}

// UpsertItemCommandHandler adds or updates a SKU line on a draft pallet.
// A pallet carries at most two distinct SKUs; that cap lives here, not in
// the data layer.
func UpsertItemCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		palletID := chi.URLParam(r, "id")

		var payload ItemPayload
		if err := web.DecodeValid(r, &payload); err != nil {
			web.WriteError(w, err)
			return
		}

		existing, err := ItemsForPallet(r.Context(), db, palletID)
		if err != nil {
			web.WriteError(w, err)
			return
		}
		distinct := len(existing)
		known := false
		for _, it := range existing {
			if it.SkuID == payload.SkuID {
				known = true
				break
			}
		}
		if !known && distinct >= 2 {
			web.WriteError(w, apperr.Validation("a pallet holds at most 2 distinct SKUs"))
			return
		}

		item, err := UpsertItem(r.Context(), db, palletID, payload.SkuID, payload.QuantityOrigin, payload.AISuggestedQuantity)
		if err != nil {
			web.WriteError(w, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, item)
	}
}

// RecordCountCommandHandler stores the destination count for one SKU line.
func RecordCountCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		palletID := chi.URLParam(r, "id")

		var payload CountPayload
		if err := web.DecodeValid(r, &payload); err != nil {
			web.WriteError(w, err)
			return
		}
		if err := RecordDestinationCount(r.Context(), db, palletID, payload.SkuID, payload.QuantityDestination); err != nil {
			web.WriteError(w, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	}
}

// AnalyzeCommandHandler runs the vision collaborator over pallet photos and
// stores the confidence. Confidence below the threshold flags the pallet
// for manual review without blocking any transition.
func AnalyzeCommandHandler(db *sqlite.DB, analyzer vision.Analyzer, thresholds *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		palletID := chi.URLParam(r, "id")

		var payload AnalyzePayload
		if err := web.DecodeValid(r, &payload); err != nil {
			web.WriteError(w, err)
			return
		}

		result, err := analyzer.Analyze(r.Context(), payload.ImageRefs)
		if err != nil {
			slog.Error("vision analysis failed", slog.String("pallet_id", palletID), slog.Any("err", err))
			web.WriteError(w, apperr.Internal(err))
			return
		}

		required := result.Confidence < thresholds.ManualReviewConfidence()
		if err := SetManualReview(r.Context(), db, palletID, result.Confidence, required); err != nil {
			web.WriteError(w, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, map[string]any{
			"item_count":             result.ItemCount,
			"confidence":             result.Confidence,
			"requires_manual_review": required,
		})
	}
}

func writePalletAudit(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, userID int64, action, palletID string, before, after any) {
	if auditSvc == nil {
		return
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return auditSvc.Write(ctx, tx, userID, action, "pallet", palletID, before, after)
	})
	if err != nil {
		slog.Error("pallet audit write failed", slog.String("action", action), slog.String("pallet_id", palletID), slog.Any("err", err))
	}
}

// LoadDetail assembles the pallet detail page data.
func LoadDetail(ctx context.Context, db *sqlite.DB, palletID string) (DetailData, error) {
	pallet, err := LoadByID(ctx, db, palletID)
	if err != nil {
		return DetailData{}, err
	}

	detail := DetailData{
		ID:           pallet.ID,
		Status:       pallet.Status,
		AIConfidence: pallet.AIConfidence,
		ManualReview: pallet.RequiresManualReview,
	}

	err = db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewRaw(`SELECT code FROM qr_tags WHERE id = ?`, pallet.QrTagID).Scan(ctx, &detail.TagCode); err != nil {
			return err
		}
		if err := tx.NewRaw(`SELECT name FROM locations WHERE id = ?`, pallet.OriginLocationID).Scan(ctx, &detail.Origin); err != nil {
			return err
		}
		if pallet.DestinationLocationID != nil {
			if err := tx.NewRaw(`SELECT name FROM locations WHERE id = ?`, *pallet.DestinationLocationID).Scan(ctx, &detail.Destination); err != nil {
				return err
			}
		}

		rows := make([]ItemRow, 0)
		if err := tx.NewRaw(`
SELECT si.sku AS sku, si.description AS description,
       pi.quantity_origin AS qty_origin, pi.quantity_destination AS qty_dest,
       pi.ai_suggested_quantity AS ai_suggested
FROM pallet_items pi
JOIN stock_items si ON si.id = pi.sku_id
WHERE pi.pallet_id = ?
ORDER BY si.sku ASC`, palletID).Scan(ctx, &rows); err != nil {
			return err
		}
		detail.Items = rows
		return nil
	})
	return detail, err
}

func buildPalletRows(ctx context.Context, db *sqlite.DB, list []models.Pallet) ([]PalletRow, error) {
	rows := make([]PalletRow, 0, len(list))
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		for _, p := range list {
			row := PalletRow{
				ID:           p.ID,
				Status:       p.Status,
				ManualReview: p.RequiresManualReview,
				CreatedAt:    p.CreatedAt.Format("02/01/2006 15:04"),
			}
			if err := tx.NewRaw(`SELECT code FROM qr_tags WHERE id = ?`, p.QrTagID).Scan(ctx, &row.TagCode); err != nil {
				return err
			}
			if err := tx.NewRaw(`SELECT name FROM locations WHERE id = ?`, p.OriginLocationID).Scan(ctx, &row.Origin); err != nil {
				return err
			}
			if p.DestinationLocationID != nil {
				if err := tx.NewRaw(`SELECT name FROM locations WHERE id = ?`, *p.DestinationLocationID).Scan(ctx, &row.Destination); err != nil {
					return err
				}
			}
			rows = append(rows, row)
		}
		return nil
	})
	return rows, err
}
