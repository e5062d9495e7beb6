package receipts

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"palletrack/frontend/manifests"
	"palletrack/frontend/pallets"
	"palletrack/frontend/qrtags"
	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

// CreateInput is the validated input for receipt creation. Exactly one of
// PalletID/ManifestID may be nil.
type CreateInput struct {
	PalletID     *string
	ManifestID   *string
	LocationID   string
	ReceivedBy   int64
	AIConfidence *int64
	Notes        string
}

// Result reports what the finalization run achieved. The receipt itself is
// always present on success; everything after it is best-effort and the
// caller reads Finalized/Failed to see how far the run got.
type Result struct {
	Receipt           models.Receipt `json:"receipt"`
	ManifestDelivered bool           `json:"manifest_delivered"`
	Finalized         []string       `json:"finalized"`
	Failed            []string       `json:"failed"`
}

// Create runs receipt finalization. Persisting the receipt row is the only
// step allowed to fail the whole call. After that the run degrades
// gracefully: the manifest delivery mark and each pallet's
// finalize-and-unlink execute in their own transactions, so one stuck
// pallet never blocks the others or undoes the receipt. Discrepancy
// comparisons are NOT generated here; that is a separate explicit action
// against the stored receipt.
func Create(ctx context.Context, db *sqlite.DB, input CreateInput) (Result, error) {
	var result Result

	if input.PalletID == nil && input.ManifestID == nil {
		return result, apperr.Validation("receipt needs a pallet or a manifest")
	}
	if input.ReceivedBy <= 0 {
		return result, apperr.Validation("received_by is required")
	}
	if input.AIConfidence != nil && (*input.AIConfidence < 0 || *input.AIConfidence > 100) {
		return result, apperr.Validation("ai_confidence must be between 0 and 100")
	}

	receipt := models.Receipt{
		ID:           uuid.NewString(),
		PalletID:     input.PalletID,
		ManifestID:   input.ManifestID,
		LocationID:   input.LocationID,
		ReceivedBy:   input.ReceivedBy,
		AIConfidence: input.AIConfidence,
		Status:       models.ReceiptOK,
		Notes:        input.Notes,
	}

	// Step 1: persist the receipt. The only hard-fail step.
	var palletIDs []string
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var n int
		if err := tx.NewRaw(`SELECT COUNT(1) FROM locations WHERE id = ?`, input.LocationID).Scan(ctx, &n); err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("location", input.LocationID)
		}

		if input.PalletID != nil {
			if err := tx.NewRaw(`SELECT COUNT(1) FROM pallets WHERE id = ?`, *input.PalletID).Scan(ctx, &n); err != nil {
				return err
			}
			if n == 0 {
				return apperr.NotFound("pallet", *input.PalletID)
			}
			palletIDs = append(palletIDs, *input.PalletID)
		}
		if input.ManifestID != nil {
			if err := tx.NewRaw(`SELECT COUNT(1) FROM manifests WHERE id = ?`, *input.ManifestID).Scan(ctx, &n); err != nil {
				return err
			}
			if n == 0 {
				return apperr.NotFound("manifest", *input.ManifestID)
			}
			var fromManifest []string
			if err := tx.NewRaw(`SELECT pallet_id FROM manifest_pallets WHERE manifest_id = ? ORDER BY pallet_id`, *input.ManifestID).Scan(ctx, &fromManifest); err != nil {
				return err
			}
			palletIDs = append(palletIDs, fromManifest...)
		}

		_, err := tx.NewInsert().Model(&receipt).Exec(ctx)
		return err
	})
	if err != nil {
		return result, err
	}
	result.Receipt = receipt

	// Step 2: mark the manifest delivered. Best effort; a manifest that is
	// not in transit stays where it is and the run keeps going.
	if input.ManifestID != nil {
		err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			delivered, err := manifests.MarkDeliveredTx(ctx, tx, *input.ManifestID)
			if err != nil {
				return err
			}
			result.ManifestDelivered = delivered
			return nil
		})
		if err != nil {
			slog.Error("receipt: manifest delivery mark failed",
				"receipt_id", receipt.ID, "manifest_id", *input.ManifestID, "error", err)
		} else if !result.ManifestDelivered {
			slog.Warn("receipt: manifest was not in transit, left unchanged",
				"receipt_id", receipt.ID, "manifest_id", *input.ManifestID)
		}
	}

	// Step 3: finalize each pallet independently and free its tag. A
	// failure marks that pallet failed and moves on.
	for _, palletID := range palletIDs {
		if err := finalizePallet(ctx, db, palletID); err != nil {
			slog.Error("receipt: pallet finalization failed",
				"receipt_id", receipt.ID, "pallet_id", palletID, "error", err)
			result.Failed = append(result.Failed, palletID)
			continue
		}
		result.Finalized = append(result.Finalized, palletID)
	}
	return result, nil
}

// finalizePallet moves one pallet to finalized and unlinks its tag in a
// single transaction. A pallet still in transit is received on the way.
func finalizePallet(ctx context.Context, db *sqlite.DB, palletID string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var status, tagID string
		switch err := tx.NewRaw(`SELECT status, qr_tag_id FROM pallets WHERE id = ?`, palletID).Scan(ctx, &status, &tagID); {
		case errors.Is(err, sql.ErrNoRows):
			return apperr.NotFound("pallet", palletID)
		case err != nil:
			return err
		}

		if status == models.PalletInTransit {
			ok, err := pallets.MarkReceivedTx(ctx, tx, palletID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Conflict("pallet %s left in_transit mid-run", palletID)
			}
		} else if status != models.PalletReceived {
			return apperr.Conflict("pallet %s is %s; cannot finalize", palletID, status)
		}

		ok, err := pallets.FinalizeTx(ctx, tx, palletID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("pallet %s changed status mid-run", palletID)
		}
		return qrtags.UnlinkTx(ctx, tx, tagID)
	})
}

// SetStatus records the reconciliation verdict on a stored receipt. Called
// by comparison generation, never by users directly.
func SetStatus(ctx context.Context, db *sqlite.DB, receiptID, status string) error {
	switch status {
	case models.ReceiptOK, models.ReceiptWarning, models.ReceiptCritical:
	default:
		return apperr.Validation("unknown receipt status %q", status)
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Receipt)(nil)).
			Set("status = ?", status).
			Where("id = ?", receiptID).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("receipt", receiptID)
		}
		return nil
	})
}

// LoadByID fetches one receipt.
func LoadByID(ctx context.Context, db *sqlite.DB, receiptID string) (models.Receipt, error) {
	var receipt models.Receipt
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&receipt).Where("r.id = ?", receiptID).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return receipt, apperr.NotFound("receipt", receiptID)
	}
	return receipt, err
}

// List returns receipt rows with their location and subject names resolved
// in the same statement, newest first, optionally filtered by status.
func List(ctx context.Context, db *sqlite.DB, status string) ([]ReceiptRow, error) {
	rows := make([]ReceiptRow, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			TableExpr("receipts AS r").
			ColumnExpr("r.id AS id").
			ColumnExpr("COALESCE(m.manifest_number, qt.code, '') AS subject").
			ColumnExpr("l.code AS location").
			ColumnExpr("r.status AS status").
			ColumnExpr("strftime('%Y-%m-%d %H:%M', r.received_at) AS received_at").
			Join("JOIN locations l ON l.id = r.location_id").
			Join("LEFT JOIN manifests m ON m.id = r.manifest_id").
			Join("LEFT JOIN pallets p ON p.id = r.pallet_id").
			Join("LEFT JOIN qr_tags qt ON qt.id = p.qr_tag_id").
			OrderExpr("r.received_at DESC, r.id DESC").
			Limit(200)
		if status != "" {
			q = q.Where("r.status = ?", status)
		}
		return q.Scan(ctx, &rows)
	})
	return rows, err
}

// PalletIDsFor returns the pallets covered by a receipt: the direct pallet,
// the manifest's pallets, or both.
func PalletIDsFor(ctx context.Context, db *sqlite.DB, receipt models.Receipt) ([]string, error) {
	ids := make([]string, 0, 1)
	if receipt.PalletID != nil {
		ids = append(ids, *receipt.PalletID)
	}
	if receipt.ManifestID != nil {
		fromManifest, err := manifests.PalletIDsOn(ctx, db, *receipt.ManifestID)
		if err != nil {
			return nil, err
		}
		for _, id := range fromManifest {
			if receipt.PalletID == nil || *receipt.PalletID != id {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
