package settings

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/uptrace/bun"

	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/audit"
	"palletrack/infrastructure/sqlite"
)

func openSettingsTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "settings-test.db")
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

	if err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, role, created_at, updated_at) VALUES (1, 'admin', 'hash', 'admin', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
		return err
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return db
}

func TestStoreDefaultsAndPersistedOverride(t *testing.T) {
	db := openSettingsTestDB(t)
	ctx := context.Background()
	auditSvc := audit.NewService()

	store, err := NewStore(ctx, db, 5, 65)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if got := store.CriticalDiffThreshold(); got != 5 {
		t.Fatalf("expected default threshold 5, got %d", got)
	}
	if got := store.ManualReviewConfidence(); got != 65 {
		t.Fatalf("expected default confidence 65, got %d", got)
	}

	if err := store.SaveCriticalDiffThreshold(ctx, auditSvc, 1, 8); err != nil {
		t.Fatalf("save threshold: %v", err)
	}
	if err := store.SaveManualReviewConfidence(ctx, auditSvc, 1, 80); err != nil {
		t.Fatalf("save confidence: %v", err)
	}
	if got := store.CriticalDiffThreshold(); got != 8 {
		t.Fatalf("expected threshold 8 after save, got %d", got)
	}

	// A fresh store must pick up the persisted values over the defaults.
	reloaded, err := NewStore(ctx, db, 5, 65)
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	if got := reloaded.CriticalDiffThreshold(); got != 8 {
		t.Fatalf("expected persisted threshold 8, got %d", got)
	}
	if got := reloaded.ManualReviewConfidence(); got != 80 {
		t.Fatalf("expected persisted confidence 80, got %d", got)
	}
}

func TestStoreRejectsOutOfRangeValues(t *testing.T) {
	db := openSettingsTestDB(t)
	ctx := context.Background()
	auditSvc := audit.NewService()

	store, err := NewStore(ctx, db, 5, 65)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := store.SaveCriticalDiffThreshold(ctx, auditSvc, 1, 0); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for threshold 0, got %v", err)
	}
	if err := store.SaveManualReviewConfidence(ctx, auditSvc, 1, 101); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for confidence 101, got %v", err)
	}
	if got := store.CriticalDiffThreshold(); got != 5 {
		t.Fatalf("rejected save must not change threshold, got %d", got)
	}
}
