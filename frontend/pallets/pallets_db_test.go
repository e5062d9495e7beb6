package pallets

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/uptrace/bun"

	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "pallets-test.db")
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
			`INSERT INTO contracts (id, code, name, client_name, status) VALUES ('c2', 'CT-2', 'Old Stock', 'Acme', 'archived')`,
			`INSERT INTO locations (id, code, name, kind) VALUES ('l1', 'WH-A', 'Warehouse A', 'origin')`,
			`INSERT INTO locations (id, code, name, kind) VALUES ('l2', 'WH-B', 'Warehouse B', 'destination')`,
			`INSERT INTO stock_items (id, contract_id, sku, description) VALUES ('s1', 'c1', 'SKU-1', 'Widgets')`,
			`INSERT INTO stock_items (id, contract_id, sku, description) VALUES ('s2', 'c1', 'SKU-2', 'Gadgets')`,
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

func mustCreate(t *testing.T, db *sqlite.DB, tagCode string) models.Pallet {
	t.Helper()
	pallet, err := Create(context.Background(), db, CreateInput{
		TagCode:           tagCode,
		ContractID:        "c1",
		OriginLocationID:  "l1",
		CreatedBy:         1,
		ManualReviewBelow: 65,
	})
	if err != nil {
		t.Fatalf("create pallet: %v", err)
	}
	return pallet
}

func setStatus(t *testing.T, db *sqlite.DB, palletID, status string) {
	t.Helper()
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE pallets SET status = ? WHERE id = ?`, status, palletID)
		return err
	})
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
}

func TestCreateLinksTag(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)

	pallet := mustCreate(t, db, "TAG001")
	if pallet.Status != models.PalletDraft {
		t.Fatalf("status = %s, want draft", pallet.Status)
	}

	var tagStatus, linkedPallet string
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT status, linked_pallet_id FROM qr_tags WHERE id = 't1'`).Scan(ctx, &tagStatus, &linkedPallet)
	})
	if err != nil {
		t.Fatalf("load tag: %v", err)
	}
	if tagStatus != models.TagLinked || linkedPallet != pallet.ID {
		t.Fatalf("tag = %s/%s, want linked/%s", tagStatus, linkedPallet, pallet.ID)
	}
}

func TestCreateOnLinkedTagConflicts(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)

	first := mustCreate(t, db, "TAG001")

	_, err := Create(context.Background(), db, CreateInput{
		TagCode:           "TAG001",
		ContractID:        "c1",
		OriginLocationID:  "l1",
		CreatedBy:         1,
		ManualReviewBelow: 65,
	})
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The conflicting create must not leave a second pallet behind.
	var count int
	_ = db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM pallets`).Scan(ctx, &count)
	})
	if count != 1 {
		t.Fatalf("pallet count = %d, want 1", count)
	}

	// Existing link untouched.
	var linkedPallet string
	_ = db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT linked_pallet_id FROM qr_tags WHERE id = 't1'`).Scan(ctx, &linkedPallet)
	})
	if linkedPallet != first.ID {
		t.Fatalf("linked pallet = %s, want %s", linkedPallet, first.ID)
	}
}

func TestCreateRejectsArchivedContract(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)

	_, err := Create(context.Background(), db, CreateInput{
		TagCode:          "TAG001",
		ContractID:       "c2",
		OriginLocationID: "l1",
		CreatedBy:        1,
	})
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for archived contract, got %v", err)
	}
}

func TestCreateRejectsUnknownReferences(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)

	_, err := Create(context.Background(), db, CreateInput{
		TagCode: "NOPE", ContractID: "c1", OriginLocationID: "l1", CreatedBy: 1,
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not-found for unknown tag, got %v", err)
	}

	_, err = Create(context.Background(), db, CreateInput{
		TagCode: "TAG001", ContractID: "c1", OriginLocationID: "nope", CreatedBy: 1,
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not-found for unknown location, got %v", err)
	}
}

func TestCreateFlagsManualReviewBelowThreshold(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)

	low := int64(40)
	pallet, err := Create(context.Background(), db, CreateInput{
		TagCode:           "TAG001",
		ContractID:        "c1",
		OriginLocationID:  "l1",
		AIConfidence:      &low,
		CreatedBy:         1,
		ManualReviewBelow: 65,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !pallet.RequiresManualReview {
		t.Fatalf("confidence 40 under threshold 65 must flag manual review")
	}

	high := int64(90)
	pallet2, err := Create(context.Background(), db, CreateInput{
		TagCode:           "TAG002",
		ContractID:        "c1",
		OriginLocationID:  "l1",
		AIConfidence:      &high,
		CreatedBy:         1,
		ManualReviewBelow: 65,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if pallet2.RequiresManualReview {
		t.Fatalf("confidence 90 must not flag manual review")
	}
}

func TestForwardTransitions(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)
	pallet := mustCreate(t, db, "TAG001")
	ctx := context.Background()

	if ok, err := Seal(ctx, db, pallet.ID); err != nil || !ok {
		t.Fatalf("seal: ok=%v err=%v", ok, err)
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		ok, err := MarkInTransitTx(ctx, tx, pallet.ID)
		if err != nil {
			return err
		}
		if !ok {
			t.Errorf("mark in transit reported false")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("mark in transit: %v", err)
	}
	if ok, err := MarkReceived(ctx, db, pallet.ID); err != nil || !ok {
		t.Fatalf("receive: ok=%v err=%v", ok, err)
	}
	if ok, err := Finalize(ctx, db, pallet.ID); err != nil || !ok {
		t.Fatalf("finalize: ok=%v err=%v", ok, err)
	}

	got, err := LoadByID(ctx, db, pallet.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != models.PalletFinalized {
		t.Fatalf("status = %s, want finalized", got.Status)
	}
	if got.FinalizedAt == nil {
		t.Fatalf("finalized_at not set")
	}
}

func TestGuardedTransitionIsNoopOnWrongPredecessor(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)
	pallet := mustCreate(t, db, "TAG001")
	ctx := context.Background()

	// Finalizing a draft pallet is a guard miss, not an error.
	ok, err := Finalize(ctx, db, pallet.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if ok {
		t.Fatalf("finalize on draft must report false")
	}

	got, _ := LoadByID(ctx, db, pallet.ID)
	if got.Status != models.PalletDraft {
		t.Fatalf("status = %s, want draft untouched", got.Status)
	}

	// Sealing twice: second call is a no-op.
	if ok, _ := Seal(ctx, db, pallet.ID); !ok {
		t.Fatalf("first seal failed")
	}
	if ok, _ := Seal(ctx, db, pallet.ID); ok {
		t.Fatalf("second seal must report false")
	}
}

func TestCancelOnlyFromDraftOrSealed(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)
	ctx := context.Background()

	p1 := mustCreate(t, db, "TAG001")
	if ok, err := Cancel(ctx, db, p1.ID); err != nil || !ok {
		t.Fatalf("cancel draft: ok=%v err=%v", ok, err)
	}
	// Cancel frees the tag.
	var tagStatus string
	_ = db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT status FROM qr_tags WHERE id = 't1'`).Scan(ctx, &tagStatus)
	})
	if tagStatus != models.TagFree {
		t.Fatalf("tag status = %s, want free after cancel", tagStatus)
	}

	p2 := mustCreate(t, db, "TAG002")
	setStatus(t, db, p2.ID, models.PalletReceived)
	if ok, err := Cancel(ctx, db, p2.ID); err != nil || ok {
		t.Fatalf("cancel received: ok=%v err=%v, want guarded no-op", ok, err)
	}
}

func TestUpsertItemOnlyWhileDraft(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)
	ctx := context.Background()
	pallet := mustCreate(t, db, "TAG001")

	item, err := UpsertItem(ctx, db, pallet.ID, "s1", 10, 12)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if item.QuantityOrigin != 10 {
		t.Fatalf("quantity_origin = %d, want 10", item.QuantityOrigin)
	}

	// Replacing the same SKU keeps a single line.
	if _, err := UpsertItem(ctx, db, pallet.ID, "s1", 15, 12); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	items, err := ItemsForPallet(ctx, db, pallet.ID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 || items[0].QuantityOrigin != 15 {
		t.Fatalf("items = %+v, want single line qty 15", items)
	}

	setStatus(t, db, pallet.ID, models.PalletSealed)
	if _, err := UpsertItem(ctx, db, pallet.ID, "s2", 5, 0); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict editing sealed pallet, got %v", err)
	}
}

func TestUpsertItemRejectsNegativeQuantity(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)
	pallet := mustCreate(t, db, "TAG001")

	if _, err := UpsertItem(context.Background(), db, pallet.ID, "s1", -1, 0); err == nil {
		t.Fatalf("expected validation error for negative quantity")
	}
}

func TestRecordDestinationCount(t *testing.T) {
	db := openTestDB(t)
	seedBase(t, db)
	ctx := context.Background()
	pallet := mustCreate(t, db, "TAG001")
	if _, err := UpsertItem(ctx, db, pallet.ID, "s1", 10, 0); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := RecordDestinationCount(ctx, db, pallet.ID, "s1", 7); err != nil {
		t.Fatalf("record count: %v", err)
	}
	items, _ := ItemsForPallet(ctx, db, pallet.ID)
	if items[0].QuantityDestination != 7 || items[0].ManualCountDest != 7 {
		t.Fatalf("items = %+v, want destination 7", items[0])
	}

	if err := RecordDestinationCount(ctx, db, pallet.ID, "s2", 1); !apperr.IsNotFound(err) {
		t.Fatalf("expected not-found for missing line, got %v", err)
	}
}
