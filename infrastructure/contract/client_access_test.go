package contract

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/uptrace/bun"

	"palletrack/infrastructure/sqlite"
)

func openContractAccessTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "contract-access-test.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func seedContractAccessFixtures(t *testing.T, db *sqlite.DB) {
	t.Helper()
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO contracts (id, code, name, client_name, status, created_at, updated_at)
VALUES
  ('c1', 'contract-one', 'Contract One', 'Client A', 'active', DATETIME('now', '-2 day'), CURRENT_TIMESTAMP),
  ('c2', 'contract-two', 'Contract Two', 'Client A', 'active', DATETIME('now', '-1 day'), CURRENT_TIMESTAMP),
  ('c3', 'contract-three', 'Contract Three', 'Client A', 'archived', DATETIME('now'), CURRENT_TIMESTAMP)
`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO users (id, username, password_hash, role, created_at, updated_at)
VALUES
  (1, 'client-user', 'hash', 'client', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP),
  (2, 'admin-user', 'hash', 'admin', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO client_contract_access (user_id, contract_id, created_at)
VALUES
  (1, 'c1', CURRENT_TIMESTAMP),
  (1, 'c2', CURRENT_TIMESTAMP),
  (1, 'c3', CURRENT_TIMESTAMP)
`); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed fixtures: %v", err)
	}
}

func TestResolveClientActiveContractID(t *testing.T) {
	db := openContractAccessTestDB(t)
	seedContractAccessFixtures(t, db)

	// Active contracts sort ahead of archived ones, newest first.
	got, err := ResolveClientActiveContractID(context.Background(), db, 1, nil)
	if err != nil {
		t.Fatalf("resolve without current: %v", err)
	}
	if got == nil || *got != "c2" {
		t.Fatalf("expected newest active contract c2, got %+v", got)
	}

	current := "c3"
	got, err = ResolveClientActiveContractID(context.Background(), db, 1, &current)
	if err != nil {
		t.Fatalf("resolve with current: %v", err)
	}
	if got == nil || *got != "c3" {
		t.Fatalf("expected current c3 to be preserved, got %+v", got)
	}

	missing := "nope"
	got, err = ResolveClientActiveContractID(context.Background(), db, 1, &missing)
	if err != nil {
		t.Fatalf("resolve with missing current: %v", err)
	}
	if got == nil || *got != "c2" {
		t.Fatalf("expected fallback to c2, got %+v", got)
	}

	got, err = ResolveClientActiveContractID(context.Background(), db, 99, nil)
	if err != nil {
		t.Fatalf("resolve for unknown user: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown user, got %+v", got)
	}
}

func TestSetClientContractAccess_ReplacesAssignments(t *testing.T) {
	db := openContractAccessTestDB(t)
	seedContractAccessFixtures(t, db)

	if err := SetClientContractAccess(context.Background(), db, 1, []string{"c1", "c2"}); err != nil {
		t.Fatalf("set access [c1,c2]: %v", err)
	}
	if err := SetClientContractAccess(context.Background(), db, 1, []string{"c2"}); err != nil {
		t.Fatalf("set access [c2]: %v", err)
	}

	accessRows := make([]string, 0)
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT contract_id FROM client_contract_access WHERE user_id = 1 ORDER BY contract_id ASC`).Scan(ctx, &accessRows)
	})
	if err != nil {
		t.Fatalf("load access rows: %v", err)
	}
	if len(accessRows) != 1 || accessRows[0] != "c2" {
		t.Fatalf("expected access [c2], got %+v", accessRows)
	}

	if err := SetClientContractAccess(context.Background(), db, 2, []string{"c1"}); err == nil {
		t.Fatalf("expected non-client user update to fail")
	}

	if err := SetClientContractAccess(context.Background(), db, 1, []string{"c1", "nope"}); err == nil {
		t.Fatalf("expected invalid contract id to fail")
	}
}

func TestCreateGeneratesUniqueCodes(t *testing.T) {
	db := openContractAccessTestDB(t)
	seedContractAccessFixtures(t, db)

	first, err := Create(context.Background(), db, CreateInput{Name: "Winter Move", ClientName: "Client B"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Code != "winter-move" {
		t.Fatalf("code = %s, want winter-move", first.Code)
	}

	second, err := Create(context.Background(), db, CreateInput{Name: "Winter Move", ClientName: "Client B"})
	if err != nil {
		t.Fatalf("create duplicate name: %v", err)
	}
	if second.Code != "winter-move-2" {
		t.Fatalf("code = %s, want winter-move-2", second.Code)
	}
}
