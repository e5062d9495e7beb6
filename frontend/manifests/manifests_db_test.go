package manifests

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"palletrack/frontend/pallets"
	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "manifests-test.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

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

func seedBase(t *testing.T, db *sqlite.DB) {
	t.Helper()
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		stmts := []string{
			`INSERT INTO users (id, username, password_hash, role) VALUES (1, 'op', 'hash', 'operator')`,
			`INSERT INTO contracts (id, code, name, client_name, status) VALUES ('c1', 'CT-1', 'Spring Stock', 'Acme', 'active')`,
			`INSERT INTO locations (id, code, name, kind) VALUES ('l1', 'WH-A', 'Warehouse A', 'origin')`,
			`INSERT INTO locations (id, code, name, kind) VALUES ('l2', 'WH-B', 'Warehouse B', 'destination')`,
			`INSERT INTO qr_tags (id, code, status) VALUES ('t1', 'TAG001', 'free')`,
			`INSERT INTO qr_tags (id, code, status) VALUES ('t2', 'TAG002', 'free')`,
		}
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed base: %v", err)
	}
}

func mustManifest(t *testing.T, db *sqlite.DB) models.Manifest {
	t.Helper()
	m, err := Create(context.Background(), db, CreateInput{
		ContractID:            "c1",
		OriginLocationID:      "l1",
		DestinationLocationID: "l2",
		DriverName:            "J. Driver",
		CreatedBy:             1,
	})
	if err != nil {
		t.Fatalf("create manifest: %v", err)
	}
	return m
}

func sealedPallet(t *testing.T, db *sqlite.DB, tagCode string) models.Pallet {
	t.Helper()
	p, err := pallets.Create(context.Background(), db, pallets.CreateInput{
		TagCode:          tagCode,
		ContractID:       "c1",
		OriginLocationID: "l1",
		CreatedBy:        1,
	})
	if err != nil {
		t.Fatalf("create pallet: %v", err)
	}
	if ok, err := pallets.Seal(context.Background(), db, p.ID); err != nil || !ok {
		t.Fatalf("seal pallet: ok=%v err=%v", ok, err)
	}
	return p
}

func TestManifestNumberSequence(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)

	prefix := fmt.Sprintf("MAN-%s-", time.Now().Format("200601"))
	for i := 1; i <= 3; i++ {
		m := mustManifest(t, db)
		want := fmt.Sprintf("%s%03d", prefix, i)
		if m.ManifestNumber != want {
			t.Fatalf("manifest %d number = %s, want %s", i, m.ManifestNumber, want)
		}
	}
}

func TestCreateRejectsSameOriginAndDestination(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)

	_, err := Create(context.Background(), db, CreateInput{
		ContractID:            "c1",
		OriginLocationID:      "l1",
		DestinationLocationID: "l1",
		CreatedBy:             1,
	})
	if err == nil {
		t.Fatalf("expected validation error for same origin and destination")
	}
}

func TestAttachRequiresDraftManifestAndSealedPallet(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)
	ctx := context.Background()

	m := mustManifest(t, db)
	p := sealedPallet(t, db, "TAG001")

	if err := AttachPallet(ctx, db, m.ID, p.ID); err != nil {
		t.Fatalf("attach sealed pallet: %v", err)
	}

	// A draft pallet cannot be attached.
	draft, err := pallets.Create(ctx, db, pallets.CreateInput{
		TagCode: "TAG002", ContractID: "c1", OriginLocationID: "l1", CreatedBy: 1,
	})
	if err != nil {
		t.Fatalf("create draft pallet: %v", err)
	}
	if err := AttachPallet(ctx, db, m.ID, draft.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict attaching draft pallet, got %v", err)
	}

	// The same sealed pallet cannot join a second open manifest.
	m2 := mustManifest(t, db)
	if err := AttachPallet(ctx, db, m2.ID, p.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict attaching pallet twice, got %v", err)
	}
}

func TestDetachOnlyWhileDraft(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)
	ctx := context.Background()

	m := mustManifest(t, db)
	p := sealedPallet(t, db, "TAG001")
	if err := AttachPallet(ctx, db, m.ID, p.ID); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, err := MarkLoaded(ctx, db, m.ID); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := DetachPallet(ctx, db, m.ID, p.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict detaching from loaded manifest, got %v", err)
	}
}

func TestMarkLoadedCascadesPalletsToInTransit(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)
	ctx := context.Background()

	m := mustManifest(t, db)
	p1 := sealedPallet(t, db, "TAG001")
	p2 := sealedPallet(t, db, "TAG002")
	for _, p := range []models.Pallet{p1, p2} {
		if err := AttachPallet(ctx, db, m.ID, p.ID); err != nil {
			t.Fatalf("attach %s: %v", p.ID, err)
		}
	}

	result, err := MarkLoaded(ctx, db, m.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !result.Loaded || len(result.Moved) != 2 || len(result.Skipped) != 0 {
		t.Fatalf("result = %+v, want both pallets moved", result)
	}

	got, _ := LoadByID(ctx, db, m.ID)
	if got.Status != models.ManifestLoaded || got.LoadedAt == nil {
		t.Fatalf("manifest = %s loaded_at=%v, want loaded with timestamp", got.Status, got.LoadedAt)
	}
	for _, p := range []models.Pallet{p1, p2} {
		pp, _ := pallets.LoadByID(ctx, db, p.ID)
		if pp.Status != models.PalletInTransit {
			t.Fatalf("pallet %s = %s, want in_transit", p.ID, pp.Status)
		}
	}
}

func TestMarkLoadedSkipsPalletThatLeftSealed(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)
	ctx := context.Background()

	m := mustManifest(t, db)
	p1 := sealedPallet(t, db, "TAG001")
	p2 := sealedPallet(t, db, "TAG002")
	for _, p := range []models.Pallet{p1, p2} {
		if err := AttachPallet(ctx, db, m.ID, p.ID); err != nil {
			t.Fatalf("attach %s: %v", p.ID, err)
		}
	}

	// Force p2 out of sealed behind the cascade's back.
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE pallets SET status = 'received' WHERE id = ?`, p2.ID)
		return err
	})
	if err != nil {
		t.Fatalf("force status: %v", err)
	}

	result, err := MarkLoaded(ctx, db, m.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !result.Loaded {
		t.Fatalf("manifest must still load")
	}
	if len(result.Moved) != 1 || result.Moved[0] != p1.ID {
		t.Fatalf("moved = %v, want only %s", result.Moved, p1.ID)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != p2.ID {
		t.Fatalf("skipped = %v, want %s", result.Skipped, p2.ID)
	}

	// The good pallet moved despite the bad one.
	pp1, _ := pallets.LoadByID(ctx, db, p1.ID)
	if pp1.Status != models.PalletInTransit {
		t.Fatalf("pallet %s = %s, want in_transit", p1.ID, pp1.Status)
	}
}

func TestMarkLoadedRequiresPallets(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)

	m := mustManifest(t, db)
	if _, err := MarkLoaded(context.Background(), db, m.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for empty manifest, got %v", err)
	}
}

func TestDepartAndDeliverGuards(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)
	ctx := context.Background()

	m := mustManifest(t, db)
	p := sealedPallet(t, db, "TAG001")
	if err := AttachPallet(ctx, db, m.ID, p.ID); err != nil {
		t.Fatalf("attach: %v", err)
	}

	// Departing a draft manifest is a guard miss.
	if ok, err := MarkInTransit(ctx, db, m.ID); err != nil || ok {
		t.Fatalf("depart draft: ok=%v err=%v, want guarded no-op", ok, err)
	}

	if _, err := MarkLoaded(ctx, db, m.ID); err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok, err := MarkInTransit(ctx, db, m.ID); err != nil || !ok {
		t.Fatalf("depart: ok=%v err=%v", ok, err)
	}
	if ok, err := MarkDelivered(ctx, db, m.ID); err != nil || !ok {
		t.Fatalf("deliver: ok=%v err=%v", ok, err)
	}

	// Delivery is manifest-only; the pallet stays in transit for receiving.
	pp, _ := pallets.LoadByID(ctx, db, p.ID)
	if pp.Status != models.PalletInTransit {
		t.Fatalf("pallet = %s, want in_transit after manifest delivery", pp.Status)
	}

	if ok, _ := MarkDelivered(ctx, db, m.ID); ok {
		t.Fatalf("second deliver must report false")
	}
}
