package pallets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"palletrack/frontend/qrtags"
	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

// CreateInput is the validated input for pallet creation.
type CreateInput struct {
	TagCode               string
	ContractID            string
	OriginLocationID      string
	DestinationLocationID *string
	AIConfidence          *int64
	CreatedBy             int64
	// ManualReviewBelow flags the pallet when AIConfidence is under it.
	ManualReviewBelow int64
}

// Create inserts a draft pallet and links its QR tag in one transaction.
// A tag already linked to another pallet yields apperr.Conflict carrying
// the existing pallet id, so the caller can open that pallet instead.
func Create(ctx context.Context, db *sqlite.DB, input CreateInput) (models.Pallet, error) {
	if input.CreatedBy <= 0 {
		return models.Pallet{}, apperr.Validation("created_by is required")
	}
	if input.AIConfidence != nil && (*input.AIConfidence < 0 || *input.AIConfidence > 100) {
		return models.Pallet{}, apperr.Validation("ai_confidence must be between 0 and 100")
	}

	pallet := models.Pallet{
		ID:                    uuid.NewString(),
		ContractID:            input.ContractID,
		OriginLocationID:      input.OriginLocationID,
		DestinationLocationID: input.DestinationLocationID,
		Status:                models.PalletDraft,
		AIConfidence:          input.AIConfidence,
		CreatedBy:             input.CreatedBy,
	}
	if input.AIConfidence != nil && *input.AIConfidence < input.ManualReviewBelow {
		pallet.RequiresManualReview = true
	}

	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var contractStatus string
		switch err := tx.NewRaw(`SELECT status FROM contracts WHERE id = ?`, input.ContractID).Scan(ctx, &contractStatus); {
		case errors.Is(err, sql.ErrNoRows):
			return apperr.NotFound("contract", input.ContractID)
		case err != nil:
			return err
		}
		if contractStatus != "active" {
			return apperr.Conflict("contract %s is archived", input.ContractID)
		}

		if err := requireLocation(ctx, tx, input.OriginLocationID); err != nil {
			return err
		}
		if input.DestinationLocationID != nil {
			if err := requireLocation(ctx, tx, *input.DestinationLocationID); err != nil {
				return err
			}
		}

		var tag models.QrTag
		switch err := tx.NewSelect().Model(&tag).Where("qt.code = ?", input.TagCode).Limit(1).Scan(ctx); {
		case errors.Is(err, sql.ErrNoRows):
			return apperr.NotFound("qr tag", input.TagCode)
		case err != nil:
			return err
		}
		pallet.QrTagID = tag.ID

		linked, err := qrtags.LinkTx(ctx, tx, tag.ID, pallet.ID)
		if err != nil {
			return err
		}
		if !linked {
			existing := ""
			if tag.LinkedPalletID != nil {
				existing = *tag.LinkedPalletID
			}
			return apperr.Conflict("tag %s already linked to pallet %s", tag.Code, existing)
		}

		_, err = tx.NewInsert().Model(&pallet).Exec(ctx)
		return err
	})
	if err != nil {
		return models.Pallet{}, err
	}
	return pallet, nil
}

func requireLocation(ctx context.Context, tx bun.Tx, locationID string) error {
	var n int
	if err := tx.NewRaw(`SELECT COUNT(1) FROM locations WHERE id = ?`, locationID).Scan(ctx, &n); err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("location", locationID)
	}
	return nil
}

// transition performs the guarded status move. It returns false when the
// pallet is not in the expected predecessor status; the caller decides
// whether that is fatal. Racing transitions collapse to a single winner
// because the update is conditional on the prior status.
func transition(ctx context.Context, tx bun.Tx, palletID, from, to string, extra func(*bun.UpdateQuery) *bun.UpdateQuery) (bool, error) {
	q := tx.NewUpdate().
		Model((*models.Pallet)(nil)).
		Set("status = ?", to).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", palletID).
		Where("status = ?", from)
	if extra != nil {
		q = extra(q)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("pallet %s %s->%s: %w", palletID, from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Seal moves draft -> sealed.
func Seal(ctx context.Context, db *sqlite.DB, palletID string) (bool, error) {
	var ok bool
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		ok, err = transition(ctx, tx, palletID, models.PalletDraft, models.PalletSealed, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Set("sealed_at = CURRENT_TIMESTAMP")
		})
		return err
	})
	return ok, err
}

// MarkInTransitTx moves sealed -> in_transit, inside the manifest loading
// cascade's per-pallet step.
func MarkInTransitTx(ctx context.Context, tx bun.Tx, palletID string) (bool, error) {
	return transition(ctx, tx, palletID, models.PalletSealed, models.PalletInTransit, nil)
}

// MarkReceived moves in_transit -> received.
func MarkReceived(ctx context.Context, db *sqlite.DB, palletID string) (bool, error) {
	var ok bool
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		ok, err = MarkReceivedTx(ctx, tx, palletID)
		return err
	})
	return ok, err
}

// MarkReceivedTx is MarkReceived inside a caller-owned transaction.
func MarkReceivedTx(ctx context.Context, tx bun.Tx, palletID string) (bool, error) {
	return transition(ctx, tx, palletID, models.PalletInTransit, models.PalletReceived, nil)
}

// Finalize moves received -> finalized. Terminal; the receipt orchestrator
// pairs it with the tag unlink.
func Finalize(ctx context.Context, db *sqlite.DB, palletID string) (bool, error) {
	var ok bool
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		ok, err = FinalizeTx(ctx, tx, palletID)
		return err
	})
	return ok, err
}

// FinalizeTx is Finalize inside a caller-owned transaction.
func FinalizeTx(ctx context.Context, tx bun.Tx, palletID string) (bool, error) {
	return transition(ctx, tx, palletID, models.PalletReceived, models.PalletFinalized, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("finalized_at = CURRENT_TIMESTAMP")
	})
}

// Cancel aborts a pallet still at the origin (draft or sealed only) and
// frees its tag.
func Cancel(ctx context.Context, db *sqlite.DB, palletID string) (bool, error) {
	var ok bool
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Pallet)(nil)).
			Set("status = ?", models.PalletCancelled).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", palletID).
			Where("status IN (?, ?)", models.PalletDraft, models.PalletSealed).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		ok = n == 1
		if !ok {
			return nil
		}

		var tagID string
		if err := tx.NewRaw(`SELECT qr_tag_id FROM pallets WHERE id = ?`, palletID).Scan(ctx, &tagID); err != nil {
			return err
		}
		return qrtags.UnlinkTx(ctx, tx, tagID)
	})
	return ok, err
}

// SetManualReview records the vision outcome on a pallet. Independent of
// status: a received pallet can still be flagged for human adjudication.
func SetManualReview(ctx context.Context, db *sqlite.DB, palletID string, confidence int64, required bool) error {
	if confidence < 0 || confidence > 100 {
		return apperr.Validation("confidence must be between 0 and 100")
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Pallet)(nil)).
			Set("ai_confidence = ?", confidence).
			Set("requires_manual_review = ?", required).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", palletID).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("pallet", palletID)
		}
		return nil
	})
}

// LoadByID fetches one pallet.
func LoadByID(ctx context.Context, db *sqlite.DB, palletID string) (models.Pallet, error) {
	var pallet models.Pallet
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&pallet).Where("p.id = ?", palletID).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return pallet, apperr.NotFound("pallet", palletID)
	}
	return pallet, err
}

// List returns pallets for a contract, newest first.
func List(ctx context.Context, db *sqlite.DB, contractID, status string) ([]models.Pallet, error) {
	pallets := make([]models.Pallet, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&pallets).OrderExpr("p.created_at DESC, p.id DESC").Limit(500)
		if contractID != "" {
			q = q.Where("p.contract_id = ?", contractID)
		}
		if status != "" {
			q = q.Where("p.status = ?", status)
		}
		return q.Scan(ctx)
	})
	return pallets, err
}

// UpsertItem records or replaces a SKU line's quantities on a pallet.
// Only draft pallets accept item edits.
func UpsertItem(ctx context.Context, db *sqlite.DB, palletID, skuID string, qtyOrigin, aiSuggested int64) (models.PalletItem, error) {
	if qtyOrigin < 0 || aiSuggested < 0 {
		return models.PalletItem{}, apperr.Validation("quantities must be >= 0")
	}

	var item models.PalletItem
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var status string
		switch err := tx.NewRaw(`SELECT status FROM pallets WHERE id = ?`, palletID).Scan(ctx, &status); {
		case errors.Is(err, sql.ErrNoRows):
			return apperr.NotFound("pallet", palletID)
		case err != nil:
			return err
		}
		if status != models.PalletDraft {
			return apperr.Conflict("pallet %s is %s; items can only change while draft", palletID, status)
		}

		var skuCount int
		if err := tx.NewRaw(`SELECT COUNT(1) FROM stock_items WHERE id = ?`, skuID).Scan(ctx, &skuCount); err != nil {
			return err
		}
		if skuCount == 0 {
			return apperr.NotFound("stock item", skuID)
		}

		err := tx.NewSelect().Model(&item).
			Where("pi.pallet_id = ?", palletID).
			Where("pi.sku_id = ?", skuID).
			Limit(1).
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			item = models.PalletItem{
				ID:                  uuid.NewString(),
				PalletID:            palletID,
				SkuID:               skuID,
				QuantityOrigin:      qtyOrigin,
				AISuggestedQuantity: aiSuggested,
			}
			_, err = tx.NewInsert().Model(&item).Exec(ctx)
			return err
		case err != nil:
			return err
		}

		item.QuantityOrigin = qtyOrigin
		item.AISuggestedQuantity = aiSuggested
		_, err = tx.NewUpdate().Model(&item).
			Set("quantity_origin = ?", qtyOrigin).
			Set("ai_suggested_quantity = ?", aiSuggested).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", item.ID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return models.PalletItem{}, err
	}
	return item, nil
}

// RecordDestinationCount stores the counted quantity at the destination for
// one SKU line, ahead of comparison generation.
func RecordDestinationCount(ctx context.Context, db *sqlite.DB, palletID, skuID string, qtyDestination int64) error {
	if qtyDestination < 0 {
		return apperr.Validation("quantity_destination must be >= 0")
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.PalletItem)(nil)).
			Set("quantity_destination = ?", qtyDestination).
			Set("manual_count_destination = ?", qtyDestination).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("pallet_id = ?", palletID).
			Where("sku_id = ?", skuID).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("pallet item", palletID+"/"+skuID)
		}
		return nil
	})
}

// ItemsForPallet returns the SKU lines of one pallet in SKU order.
func ItemsForPallet(ctx context.Context, db *sqlite.DB, palletID string) ([]models.PalletItem, error) {
	items := make([]models.PalletItem, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&items).
			Where("pi.pallet_id = ?", palletID).
			OrderExpr("pi.sku_id ASC").
			Scan(ctx)
	})
	return items, err
}
