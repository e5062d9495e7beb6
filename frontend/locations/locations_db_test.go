package locations

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/uptrace/bun"

	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/sqlite"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "locations-test.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "..", "infrastructure", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestCreateNormalizesAndValidates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	l, err := Create(ctx, db, "wh-north", "North Warehouse", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Code != "WH-NORTH" || l.Kind != KindBoth {
		t.Fatalf("location = %+v, want uppercased code and kind both", l)
	}

	if _, err := Create(ctx, db, "WH-NORTH", "Duplicate", ""); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate code, got %v", err)
	}
	if _, err := Create(ctx, db, "x", "Too Short", ""); err == nil {
		t.Fatalf("expected validation error for short code")
	}
	if _, err := Create(ctx, db, "WH-OK", "Bad Kind", "sideways"); err == nil {
		t.Fatalf("expected validation error for unknown kind")
	}
}

func TestRenameKeepsCode(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	l, err := Create(ctx, db, "WH-A", "Old Name", KindOrigin)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := Rename(ctx, db, l.ID, "New Name"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	got, err := LoadByID(ctx, db, l.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != "New Name" || got.Code != "WH-A" {
		t.Fatalf("location = %+v, want renamed with code intact", got)
	}

	if err := Rename(ctx, db, "nope", "Anything"); !apperr.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestDeleteRefusesReferencedLocation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	keep, err := Create(ctx, db, "WH-KEEP", "Referenced", KindOrigin)
	if err != nil {
		t.Fatalf("create keep: %v", err)
	}
	gone, err := Create(ctx, db, "WH-GONE", "Unused", KindOrigin)
	if err != nil {
		t.Fatalf("create gone: %v", err)
	}

	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		stmts := []string{
			`INSERT INTO users (id, username, password_hash, role) VALUES (1, 'op', 'hash', 'operator')`,
			`INSERT INTO contracts (id, code, name, client_name, status) VALUES ('c1', 'CT-1', 'Stock', 'Acme', 'active')`,
			`INSERT INTO qr_tags (id, code, status, linked_pallet_id) VALUES ('t1', 'TAG001', 'linked', 'p1')`,
			`INSERT INTO pallets (id, qr_tag_id, contract_id, origin_location_id, status, created_by)
			 VALUES ('p1', 't1', 'c1', '` + keep.ID + `', 'draft', 1)`,
		}
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed reference: %v", err)
	}

	if err := Delete(ctx, db, keep.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict deleting referenced location, got %v", err)
	}
	if err := Delete(ctx, db, gone.ID); err != nil {
		t.Fatalf("delete unused: %v", err)
	}
	if _, err := LoadByID(ctx, db, gone.ID); !apperr.IsNotFound(err) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}
