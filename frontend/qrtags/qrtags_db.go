package qrtags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

// Link moves a free tag to linked and records the pallet. Returns false
// without error when the tag is already linked; callers treat that as
// "tag in use" and look up the existing pallet instead of failing.
func Link(ctx context.Context, db *sqlite.DB, tagID, palletID string) (bool, error) {
	var linked bool
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		linked, err = LinkTx(ctx, tx, tagID, palletID)
		return err
	})
	return linked, err
}

// LinkTx is Link inside a caller-owned transaction, for flows that link a
// tag and create its pallet atomically.
func LinkTx(ctx context.Context, tx bun.Tx, tagID, palletID string) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*models.QrTag)(nil)).
		Set("status = ?", models.TagLinked).
		Set("linked_pallet_id = ?", palletID).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", tagID).
		Where("status = ?", models.TagFree).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("link tag %s: %w", tagID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Unlink frees a tag regardless of prior state. Idempotent: unlinking a
// free tag leaves it free and reports no error.
func Unlink(ctx context.Context, db *sqlite.DB, tagID string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return UnlinkTx(ctx, tx, tagID)
	})
}

// UnlinkTx is Unlink inside a caller-owned transaction.
func UnlinkTx(ctx context.Context, tx bun.Tx, tagID string) error {
	_, err := tx.NewUpdate().
		Model((*models.QrTag)(nil)).
		Set("status = ?", models.TagFree).
		Set("linked_pallet_id = NULL").
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", tagID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("unlink tag %s: %w", tagID, err)
	}
	return nil
}

// BatchResult reports the outcome of a batch generation run.
type BatchResult struct {
	Generated []string `json:"generated"`
	Skipped   []string `json:"skipped"`
}

// BatchGenerate creates count sequential tag codes {prefix}{number:03d}
// starting at start. Codes that already exist are skipped and reported,
// not treated as failures, so a re-run of the same batch is safe.
func BatchGenerate(ctx context.Context, db *sqlite.DB, prefix string, start, count int) (BatchResult, error) {
	result := BatchResult{Generated: make([]string, 0, count), Skipped: make([]string, 0)}
	if count <= 0 {
		return result, apperr.Validation("count must be >= 1")
	}
	if start < 0 {
		return result, apperr.Validation("start must be >= 0")
	}
	if prefix == "" {
		return result, apperr.Validation("prefix is required")
	}

	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		for i := 0; i < count; i++ {
			code := fmt.Sprintf("%s%03d", prefix, start+i)

			var existing int
			if err := tx.NewRaw(`SELECT COUNT(1) FROM qr_tags WHERE code = ?`, code).Scan(ctx, &existing); err != nil {
				return err
			}
			if existing > 0 {
				result.Skipped = append(result.Skipped, code)
				continue
			}

			tag := &models.QrTag{
				ID:     uuid.NewString(),
				Code:   code,
				Status: models.TagFree,
			}
			if _, err := tx.NewInsert().Model(tag).Exec(ctx); err != nil {
				return fmt.Errorf("insert tag %s: %w", code, err)
			}
			result.Generated = append(result.Generated, code)
		}
		return nil
	})
	return result, err
}

// LoadByID fetches one tag.
func LoadByID(ctx context.Context, db *sqlite.DB, tagID string) (models.QrTag, error) {
	var tag models.QrTag
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&tag).Where("qt.id = ?", tagID).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return tag, apperr.NotFound("qr tag", tagID)
	}
	return tag, err
}

// LoadByCode fetches one tag by its printed code.
func LoadByCode(ctx context.Context, db *sqlite.DB, code string) (models.QrTag, error) {
	var tag models.QrTag
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&tag).Where("qt.code = ?", code).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return tag, apperr.NotFound("qr tag", code)
	}
	return tag, err
}

// List returns tags, optionally filtered by status, newest first.
func List(ctx context.Context, db *sqlite.DB, status string, limit int) ([]models.QrTag, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	tags := make([]models.QrTag, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&tags).OrderExpr("qt.code ASC").Limit(limit)
		if status != "" {
			q = q.Where("qt.status = ?", status)
		}
		return q.Scan(ctx)
	})
	return tags, err
}

// CountByStatus returns free/linked tallies for the list page.
func CountByStatus(ctx context.Context, db *sqlite.DB) (free, linked int64, err error) {
	err = db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		type row struct {
			Status string `bun:"status"`
			N      int64  `bun:"n"`
		}
		rows := make([]row, 0, 2)
		if err := tx.NewRaw(`SELECT status, COUNT(*) AS n FROM qr_tags GROUP BY status`).Scan(ctx, &rows); err != nil {
			return err
		}
		for _, r := range rows {
			switch r.Status {
			case models.TagFree:
				free = r.N
			case models.TagLinked:
				linked = r.N
			}
		}
		return nil
	})
	return free, linked, err
}
