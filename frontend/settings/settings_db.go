package settings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/uptrace/bun"

	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/audit"
	"palletrack/infrastructure/sqlite"
)

const (
	keyCriticalDiffThreshold  = "critical_diff_threshold"
	keyManualReviewConfidence = "manual_review_confidence"
)

// Store serves the reconciliation tunables. Values persisted in
// app_settings win over the environment defaults; saves take effect for
// requests already in flight on their next read.
type Store struct {
	db *sqlite.DB

	criticalDiff atomic.Int64
	manualReview atomic.Int64
}

func NewStore(ctx context.Context, db *sqlite.DB, criticalDefault, manualDefault int64) (*Store, error) {
	s := &Store{db: db}
	s.criticalDiff.Store(criticalDefault)
	s.manualReview.Store(manualDefault)

	if v, ok, err := readInt(ctx, db, keyCriticalDiffThreshold); err != nil {
		return nil, err
	} else if ok {
		s.criticalDiff.Store(v)
	}
	if v, ok, err := readInt(ctx, db, keyManualReviewConfidence); err != nil {
		return nil, err
	} else if ok {
		s.manualReview.Store(v)
	}
	return s, nil
}

// CriticalDiffThreshold is the absolute count difference at which a
// discrepancy is classified critical.
func (s *Store) CriticalDiffThreshold() int64 {
	return s.criticalDiff.Load()
}

// ManualReviewConfidence is the vision confidence below which a pallet
// is flagged for manual review.
func (s *Store) ManualReviewConfidence() int64 {
	return s.manualReview.Load()
}

func (s *Store) SaveCriticalDiffThreshold(ctx context.Context, auditSvc *audit.Service, userID, value int64) error {
	if value < 1 {
		return apperr.Validation("critical diff threshold must be at least 1")
	}
	before := s.criticalDiff.Load()
	if err := s.write(ctx, auditSvc, userID, keyCriticalDiffThreshold, before, value); err != nil {
		return err
	}
	s.criticalDiff.Store(value)
	return nil
}

func (s *Store) SaveManualReviewConfidence(ctx context.Context, auditSvc *audit.Service, userID, value int64) error {
	if value < 0 || value > 100 {
		return apperr.Validation("manual review confidence must be between 0 and 100")
	}
	before := s.manualReview.Load()
	if err := s.write(ctx, auditSvc, userID, keyManualReviewConfidence, before, value); err != nil {
		return err
	}
	s.manualReview.Store(value)
	return nil
}

func (s *Store) write(ctx context.Context, auditSvc *audit.Service, userID int64, key string, before, after int64) error {
	return s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO app_settings (key, value, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET
  value = excluded.value,
  updated_at = CURRENT_TIMESTAMP`, key, strconv.FormatInt(after, 10))
		if err != nil {
			return err
		}
		return auditSvc.Write(ctx, tx, userID, "settings.update", "app_setting", key,
			map[string]int64{"value": before}, map[string]int64{"value": after})
	})
}

func readInt(ctx context.Context, db *sqlite.DB, key string) (int64, bool, error) {
	var raw string
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT value FROM app_settings WHERE key = ?`, key).Scan(ctx, &raw)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, apperr.Internal(err)
	}
	return v, true, nil
}
