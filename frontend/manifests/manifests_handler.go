package manifests

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"

	sessioncontext "palletrack/frontend/shared/context"
	"palletrack/frontend/shared/nav"
	"palletrack/frontend/shared/web"
	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/audit"
	"palletrack/infrastructure/sqlite"
)

// ManifestsPageQueryHandler renders the manifest list for the active contract.
func ManifestsPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
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
			http.Error(w, "failed to load manifests", http.StatusInternalServerError)
			return
		}

		rows := make([]ManifestRow, 0, len(list))
		for _, m := range list {
			row := ManifestRow{
				ID:             m.ID,
				ManifestNumber: m.ManifestNumber,
				Driver:         m.DriverName,
				Status:         m.Status,
				CreatedAt:      m.CreatedAt.Format("2006-01-02 15:04"),
			}
			err := db.WithReadTx(r.Context(), func(ctx context.Context, tx bun.Tx) error {
				if err := tx.NewRaw(`SELECT COUNT(1) FROM manifest_pallets WHERE manifest_id = ?`, m.ID).Scan(ctx, &row.PalletCount); err != nil {
					return err
				}
				var origin, dest string
				if err := tx.NewRaw(`SELECT code FROM locations WHERE id = ?`, m.OriginLocationID).Scan(ctx, &origin); err != nil {
					return err
				}
				if err := tx.NewRaw(`SELECT code FROM locations WHERE id = ?`, m.DestinationLocationID).Scan(ctx, &dest); err != nil {
					return err
				}
				row.Route = origin + " -> " + dest
				return nil
			})
			if err != nil {
				http.Error(w, "failed to load manifest details", http.StatusInternalServerError)
				return
			}
			rows = append(rows, row)
		}

		data := PageData{
			Filter:  status,
			Message: strings.TrimSpace(r.URL.Query().Get("message")),
			Rows:    rows,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := ManifestsPage(data, nav.BuildTopNavData(session)).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render manifests page", http.StatusInternalServerError)
			return
		}
	}
}

// ManifestDetailQueryHandler renders one manifest with its pallets.
func ManifestDetailQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manifestID := chi.URLParam(r, "id")
		manifest, err := LoadByID(r.Context(), db, manifestID)
		if err != nil {
			web.WriteError(w, err)
			return
		}

		attached, err := PalletsOn(r.Context(), db, manifestID)
		if err != nil {
			web.WriteError(w, err)
			return
		}
		lines := make([]PalletLine, 0, len(attached))
		for _, p := range attached {
			line := PalletLine{ID: p.ID, Status: p.Status}
			err := db.WithReadTx(r.Context(), func(ctx context.Context, tx bun.Tx) error {
				return tx.NewRaw(`SELECT code FROM qr_tags WHERE id = ?`, p.QrTagID).Scan(ctx, &line.TagCode)
			})
			if err != nil {
				web.WriteError(w, err)
				return
			}
			lines = append(lines, line)
		}

		data := DetailData{Manifest: manifest, Pallets: lines}
		err = db.WithReadTx(r.Context(), func(ctx context.Context, tx bun.Tx) error {
			if err := tx.NewRaw(`SELECT code FROM locations WHERE id = ?`, manifest.OriginLocationID).Scan(ctx, &data.Origin); err != nil {
				return err
			}
			return tx.NewRaw(`SELECT code FROM locations WHERE id = ?`, manifest.DestinationLocationID).Scan(ctx, &data.Dest)
		})
		if err != nil {
			web.WriteError(w, err)
			return
		}

		topNav := nav.TopNavData{}
		if session, ok := sessioncontext.GetSessionFromContext(r.Context()); ok {
			topNav = nav.BuildTopNavData(session)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := ManifestDetailPage(data, topNav).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render manifest page", http.StatusInternalServerError)
			return
		}
	}
}

// CreateManifestCommandHandler creates a draft manifest.
func CreateManifestCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
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

		manifest, err := Create(r.Context(), db, CreateInput{
			ContractID:            *session.ActiveContractID,
			OriginLocationID:      payload.OriginLocationID,
			DestinationLocationID: payload.DestinationLocationID,
			DriverName:            strings.TrimSpace(payload.DriverName),
			VehiclePlate:          strings.TrimSpace(payload.VehiclePlate),
			CreatedBy:             session.UserID,
		})
		if err != nil {
			web.WriteError(w, err)
			return
		}

		writeManifestAudit(r.Context(), db, auditSvc, session.UserID, "manifest.create", manifest.ID, nil, manifest)
		web.WriteJSON(w, http.StatusCreated, manifest)
	}
}

// AttachPalletCommandHandler adds a pallet to a draft manifest.
func AttachPalletCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			web.WriteError(w, apperr.Validation("not signed in"))
			return
		}
		manifestID := chi.URLParam(r, "id")

		var payload AttachPayload
		if err := web.DecodeValid(r, &payload); err != nil {
			web.WriteError(w, err)
			return
		}

		if err := AttachPallet(r.Context(), db, manifestID, payload.PalletID); err != nil {
			web.WriteError(w, err)
			return
		}
		writeManifestAudit(r.Context(), db, auditSvc, session.UserID, "manifest.attach_pallet", manifestID, nil, payload)
		web.WriteJSON(w, http.StatusOK, map[string]string{"manifest_id": manifestID, "pallet_id": payload.PalletID})
	}
}

// DetachPalletCommandHandler removes a pallet from a draft manifest.
func DetachPalletCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			web.WriteError(w, apperr.Validation("not signed in"))
			return
		}
		manifestID := chi.URLParam(r, "id")
		palletID := chi.URLParam(r, "palletId")

		if err := DetachPallet(r.Context(), db, manifestID, palletID); err != nil {
			web.WriteError(w, err)
			return
		}
		writeManifestAudit(r.Context(), db, auditSvc, session.UserID, "manifest.detach_pallet", manifestID, palletID, nil)
		web.WriteJSON(w, http.StatusOK, map[string]string{"manifest_id": manifestID})
	}
}

// LoadCommandHandler runs the loading cascade.
func LoadCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			web.WriteError(w, apperr.Validation("not signed in"))
			return
		}
		manifestID := chi.URLParam(r, "id")

		result, err := MarkLoaded(r.Context(), db, manifestID)
		if err != nil {
			web.WriteError(w, err)
			return
		}
		if !result.Loaded {
			web.WriteError(w, apperr.Conflict("manifest %s is not draft", manifestID))
			return
		}

		writeManifestAudit(r.Context(), db, auditSvc, session.UserID, "manifest.load", manifestID, nil, result)
		web.WriteJSON(w, http.StatusOK, result)
	}
}

// TransitionCommandHandler serves depart and deliver over HTTP.
func TransitionCommandHandler(db *sqlite.DB, auditSvc *audit.Service, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			web.WriteError(w, apperr.Validation("not signed in"))
			return
		}
		manifestID := chi.URLParam(r, "id")

		var moved bool
		var err error
		switch action {
		case "depart":
			moved, err = MarkInTransit(r.Context(), db, manifestID)
		case "deliver":
			moved, err = MarkDelivered(r.Context(), db, manifestID)
		default:
			web.WriteError(w, apperr.Validation("unknown manifest action %q", action))
			return
		}
		if err != nil {
			web.WriteError(w, err)
			return
		}
		if !moved {
			web.WriteError(w, apperr.Conflict("manifest %s cannot %s from its current status", manifestID, action))
			return
		}

		writeManifestAudit(r.Context(), db, auditSvc, session.UserID, "manifest."+action, manifestID, nil, nil)
		web.WriteJSON(w, http.StatusOK, map[string]string{"manifest_id": manifestID, "action": action})
	}
}

func writeManifestAudit(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, userID int64, action, manifestID string, before, after any) {
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return auditSvc.Write(ctx, tx, userID, action, "manifest", manifestID, before, after)
	})
	if err != nil {
		slog.Error("manifest audit write failed", "action", action, "manifest_id", manifestID, "error", err)
	}
}
