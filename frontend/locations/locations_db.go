package locations

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

const (
	KindOrigin      = "origin"
	KindDestination = "destination"
	KindBoth        = "both"
)

var codeRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{1,15}$`)

// Create inserts a warehouse site. Codes are short uppercase identifiers
// printed on signage, so the format is strict.
func Create(ctx context.Context, db *sqlite.DB, code, name, kind string) (models.Location, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if !codeRegex.MatchString(code) {
		return models.Location{}, apperr.Validation("location code must be 2-16 uppercase letters, digits or dashes")
	}
	if name == "" {
		return models.Location{}, apperr.Validation("location name is required")
	}
	switch kind {
	case KindOrigin, KindDestination, KindBoth:
	case "":
		kind = KindBoth
	default:
		return models.Location{}, apperr.Validation("kind must be origin, destination or both")
	}

	location := models.Location{
		ID:   uuid.NewString(),
		Code: code,
		Name: name,
		Kind: kind,
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var count int
		if err := tx.NewRaw(`SELECT COUNT(1) FROM locations WHERE code = ?`, code).Scan(ctx, &count); err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("location code %s already exists", code)
		}
		_, err := tx.NewInsert().Model(&location).Exec(ctx)
		return err
	})
	if err != nil {
		return models.Location{}, err
	}
	return location, nil
}

// LoadByID fetches one location.
func LoadByID(ctx context.Context, db *sqlite.DB, id string) (models.Location, error) {
	var location models.Location
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&location).Where("l.id = ?", id).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return location, apperr.NotFound("location", id)
	}
	return location, err
}

// List returns all locations in code order.
func List(ctx context.Context, db *sqlite.DB) ([]models.Location, error) {
	list := make([]models.Location, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&list).OrderExpr("l.code ASC").Scan(ctx)
	})
	return list, err
}

// Rename updates a location's display name. The code stays fixed because
// it is printed on physical signage.
func Rename(ctx context.Context, db *sqlite.DB, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation("location name is required")
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Location)(nil)).
			Set("name = ?", name).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("location", id)
		}
		return nil
	})
}

// Delete removes a location with no pallet or manifest history.
func Delete(ctx context.Context, db *sqlite.DB, id string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var used int
		err := tx.NewRaw(`
			SELECT
			  (SELECT COUNT(1) FROM pallets WHERE origin_location_id = ? OR destination_location_id = ?)
			+ (SELECT COUNT(1) FROM manifests WHERE origin_location_id = ? OR destination_location_id = ?)
			+ (SELECT COUNT(1) FROM receipts WHERE location_id = ?)`,
			id, id, id, id, id).Scan(ctx, &used)
		if err != nil {
			return err
		}
		if used > 0 {
			return apperr.Conflict("location is referenced by existing records")
		}

		res, err := tx.NewDelete().Model((*models.Location)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("location", id)
		}
		return nil
	})
}
