package manifests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"palletrack/frontend/pallets"
	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

// CreateInput is the validated input for manifest creation.
type CreateInput struct {
	ContractID            string
	OriginLocationID      string
	DestinationLocationID string
	DriverName            string
	VehiclePlate          string
	CreatedBy             int64
}

// Create inserts a draft manifest with a generated manifest number of the
// form MAN-YYYYMM-NNN. The sequence restarts each month; counting inside
// the write transaction keeps concurrent creates from colliding because
// the writer pool holds a single connection.
func Create(ctx context.Context, db *sqlite.DB, input CreateInput) (models.Manifest, error) {
	if input.CreatedBy <= 0 {
		return models.Manifest{}, apperr.Validation("created_by is required")
	}
	if input.OriginLocationID == input.DestinationLocationID {
		return models.Manifest{}, apperr.Validation("origin and destination must differ")
	}

	manifest := models.Manifest{
		ID:                    uuid.NewString(),
		ContractID:            input.ContractID,
		OriginLocationID:      input.OriginLocationID,
		DestinationLocationID: input.DestinationLocationID,
		DriverName:            input.DriverName,
		VehiclePlate:          input.VehiclePlate,
		Status:                models.ManifestDraft,
		CreatedBy:             input.CreatedBy,
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
		for _, locationID := range []string{input.OriginLocationID, input.DestinationLocationID} {
			var n int
			if err := tx.NewRaw(`SELECT COUNT(1) FROM locations WHERE id = ?`, locationID).Scan(ctx, &n); err != nil {
				return err
			}
			if n == 0 {
				return apperr.NotFound("location", locationID)
			}
		}

		number, err := nextManifestNumber(ctx, tx, time.Now())
		if err != nil {
			return err
		}
		manifest.ManifestNumber = number

		_, err = tx.NewInsert().Model(&manifest).Exec(ctx)
		return err
	})
	if err != nil {
		return models.Manifest{}, err
	}
	return manifest, nil
}

func nextManifestNumber(ctx context.Context, tx bun.Tx, now time.Time) (string, error) {
	prefix := fmt.Sprintf("MAN-%s-", now.Format("200601"))
	var count int
	if err := tx.NewRaw(`SELECT COUNT(1) FROM manifests WHERE manifest_number LIKE ?`, prefix+"%").Scan(ctx, &count); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

// AttachPallet adds a sealed pallet to a draft manifest.
func AttachPallet(ctx context.Context, db *sqlite.DB, manifestID, palletID string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		manifest, err := loadForUpdate(ctx, tx, manifestID)
		if err != nil {
			return err
		}
		if manifest.Status != models.ManifestDraft {
			return apperr.Conflict("manifest %s is %s; pallets can only change while draft", manifest.ManifestNumber, manifest.Status)
		}

		var palletStatus string
		switch err := tx.NewRaw(`SELECT status FROM pallets WHERE id = ?`, palletID).Scan(ctx, &palletStatus); {
		case errors.Is(err, sql.ErrNoRows):
			return apperr.NotFound("pallet", palletID)
		case err != nil:
			return err
		}
		if palletStatus != models.PalletSealed {
			return apperr.Conflict("pallet %s is %s; only sealed pallets can be loaded", palletID, palletStatus)
		}

		// A pallet can sit on at most one manifest that has not delivered.
		var busy int
		err = tx.NewRaw(`
			SELECT COUNT(1) FROM manifest_pallets mp
			JOIN manifests m ON m.id = mp.manifest_id
			WHERE mp.pallet_id = ? AND m.status != ?`, palletID, models.ManifestDelivered).Scan(ctx, &busy)
		if err != nil {
			return err
		}
		if busy > 0 {
			return apperr.Conflict("pallet %s is already on an open manifest", palletID)
		}

		_, err = tx.NewInsert().Model(&models.ManifestPallet{
			ManifestID: manifestID,
			PalletID:   palletID,
		}).Exec(ctx)
		return err
	})
}

// DetachPallet removes a pallet from a draft manifest.
func DetachPallet(ctx context.Context, db *sqlite.DB, manifestID, palletID string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		manifest, err := loadForUpdate(ctx, tx, manifestID)
		if err != nil {
			return err
		}
		if manifest.Status != models.ManifestDraft {
			return apperr.Conflict("manifest %s is %s; pallets can only change while draft", manifest.ManifestNumber, manifest.Status)
		}

		res, err := tx.NewDelete().
			Model((*models.ManifestPallet)(nil)).
			Where("manifest_id = ?", manifestID).
			Where("pallet_id = ?", palletID).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("manifest pallet", palletID)
		}
		return nil
	})
}

// LoadResult reports the outcome of the loading cascade.
type LoadResult struct {
	Loaded  bool
	Moved   []string
	Skipped []string
}

// MarkLoaded moves a draft manifest with at least one pallet to loaded,
// then cascades each attached sealed pallet to in_transit. The manifest
// transition and the per-pallet moves run in separate transactions: a
// pallet that fails to move is logged and skipped, never rolled back
// together with the rest.
func MarkLoaded(ctx context.Context, db *sqlite.DB, manifestID string) (LoadResult, error) {
	var result LoadResult
	var palletIDs []string

	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewRaw(`SELECT pallet_id FROM manifest_pallets WHERE manifest_id = ? ORDER BY pallet_id`, manifestID).Scan(ctx, &palletIDs); err != nil {
			return err
		}
		if len(palletIDs) == 0 {
			return apperr.Conflict("manifest %s has no pallets to load", manifestID)
		}

		res, err := tx.NewUpdate().
			Model((*models.Manifest)(nil)).
			Set("status = ?", models.ManifestLoaded).
			Set("loaded_at = CURRENT_TIMESTAMP").
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", manifestID).
			Where("status = ?", models.ManifestDraft).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		result.Loaded = n == 1
		return nil
	})
	if err != nil || !result.Loaded {
		return result, err
	}

	for _, palletID := range palletIDs {
		err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			moved, err := pallets.MarkInTransitTx(ctx, tx, palletID)
			if err != nil {
				return err
			}
			if !moved {
				return apperr.Conflict("pallet %s not sealed", palletID)
			}
			if _, err := tx.NewUpdate().
				Model((*models.ManifestPallet)(nil)).
				Set("loaded_at = CURRENT_TIMESTAMP").
				Where("manifest_id = ?", manifestID).
				Where("pallet_id = ?", palletID).
				Exec(ctx); err != nil {
				return err
			}
			return nil
		})
		if err != nil {
			slog.Error("manifest load cascade: pallet skipped",
				"manifest_id", manifestID, "pallet_id", palletID, "error", err)
			result.Skipped = append(result.Skipped, palletID)
			continue
		}
		result.Moved = append(result.Moved, palletID)
	}
	return result, nil
}

// MarkInTransit moves loaded -> in_transit when the truck departs.
func MarkInTransit(ctx context.Context, db *sqlite.DB, manifestID string) (bool, error) {
	return guardedMove(ctx, db, manifestID, models.ManifestLoaded, models.ManifestInTransit)
}

// MarkDelivered moves in_transit -> delivered. The manifest's pallets are
// untouched here; receiving and finalizing them is the receipt flow's job.
func MarkDelivered(ctx context.Context, db *sqlite.DB, manifestID string) (bool, error) {
	var ok bool
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		ok, err = MarkDeliveredTx(ctx, tx, manifestID)
		return err
	})
	return ok, err
}

// MarkDeliveredTx is MarkDelivered inside a caller-owned transaction.
func MarkDeliveredTx(ctx context.Context, tx bun.Tx, manifestID string) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*models.Manifest)(nil)).
		Set("status = ?", models.ManifestDelivered).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", manifestID).
		Where("status = ?", models.ManifestInTransit).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func guardedMove(ctx context.Context, db *sqlite.DB, manifestID, from, to string) (bool, error) {
	var ok bool
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Manifest)(nil)).
			Set("status = ?", to).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", manifestID).
			Where("status = ?", from).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		ok = n == 1
		return nil
	})
	return ok, err
}

func loadForUpdate(ctx context.Context, tx bun.Tx, manifestID string) (models.Manifest, error) {
	var manifest models.Manifest
	err := tx.NewSelect().Model(&manifest).Where("m.id = ?", manifestID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return manifest, apperr.NotFound("manifest", manifestID)
	}
	return manifest, err
}

// LoadByID fetches one manifest.
func LoadByID(ctx context.Context, db *sqlite.DB, manifestID string) (models.Manifest, error) {
	var manifest models.Manifest
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&manifest).Where("m.id = ?", manifestID).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return manifest, apperr.NotFound("manifest", manifestID)
	}
	return manifest, err
}

// List returns manifests for a contract, newest first.
func List(ctx context.Context, db *sqlite.DB, contractID, status string) ([]models.Manifest, error) {
	list := make([]models.Manifest, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&list).OrderExpr("m.created_at DESC, m.id DESC").Limit(200)
		if contractID != "" {
			q = q.Where("m.contract_id = ?", contractID)
		}
		if status != "" {
			q = q.Where("m.status = ?", status)
		}
		return q.Scan(ctx)
	})
	return list, err
}

// PalletsOn returns the pallets attached to a manifest.
func PalletsOn(ctx context.Context, db *sqlite.DB, manifestID string) ([]models.Pallet, error) {
	list := make([]models.Pallet, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&list).
			Join("JOIN manifest_pallets mp ON mp.pallet_id = p.id").
			Where("mp.manifest_id = ?", manifestID).
			OrderExpr("p.id ASC").
			Scan(ctx)
	})
	return list, err
}

// PalletIDsOn returns the attached pallet ids, used by the receipt flow.
func PalletIDsOn(ctx context.Context, db *sqlite.DB, manifestID string) ([]string, error) {
	ids := make([]string, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT pallet_id FROM manifest_pallets WHERE manifest_id = ? ORDER BY pallet_id`, manifestID).Scan(ctx, &ids)
	})
	return ids, err
}
