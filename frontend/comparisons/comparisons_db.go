package comparisons

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"palletrack/frontend/receipts"
	"palletrack/infrastructure/apperr"
	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

// GenerateResult reports one reconciliation run.
type GenerateResult struct {
	ReceiptID     string              `json:"receipt_id"`
	ReceiptStatus string              `json:"receipt_status"`
	Comparisons   []models.Comparison `json:"comparisons"`
}

// GenerateForReceipt reconciles every SKU line of every pallet covered by a
// receipt. Lines whose origin and destination counts agree produce no row;
// only discrepancies are stored, one per (pallet, SKU). The receipt's
// status is derived from the worst discrepancy found: critical when any
// |difference| reaches the threshold, warning when any discrepancy exists,
// ok otherwise. A receipt can be reconciled once; rerunning is a conflict
// because comparison rows are never rewritten.
func GenerateForReceipt(ctx context.Context, db *sqlite.DB, receiptID string, threshold int64) (GenerateResult, error) {
	result := GenerateResult{ReceiptID: receiptID}
	if threshold < 1 {
		return result, apperr.Validation("threshold must be >= 1")
	}

	receipt, err := receipts.LoadByID(ctx, db, receiptID)
	if err != nil {
		return result, err
	}
	palletIDs, err := receipts.PalletIDsFor(ctx, db, receipt)
	if err != nil {
		return result, err
	}

	anyDiff := false
	anyCritical := false
	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var existing int
		if err := tx.NewRaw(`SELECT COUNT(1) FROM comparisons WHERE receipt_id = ?`, receiptID).Scan(ctx, &existing); err != nil {
			return err
		}
		if existing > 0 {
			return apperr.Conflict("receipt %s is already reconciled", receiptID)
		}

		for _, palletID := range palletIDs {
			items := make([]models.PalletItem, 0)
			if err := tx.NewSelect().Model(&items).
				Where("pi.pallet_id = ?", palletID).
				OrderExpr("pi.sku_id ASC").
				Scan(ctx); err != nil {
				return err
			}

			for _, item := range items {
				difference, diffType := Compare(item.QuantityOrigin, item.QuantityDestination)
				if difference == 0 {
					continue
				}
				anyDiff = true
				if IsCritical(difference, threshold) {
					anyCritical = true
				}

				cmp := models.Comparison{
					ID:                  uuid.NewString(),
					ReceiptID:           receiptID,
					PalletID:            palletID,
					SkuID:               item.SkuID,
					QuantityOrigin:      item.QuantityOrigin,
					QuantityDestination: item.QuantityDestination,
					Difference:          difference,
					DifferenceType:      &diffType,
				}
				if _, err := tx.NewInsert().Model(&cmp).Exec(ctx); err != nil {
					return err
				}
				result.Comparisons = append(result.Comparisons, cmp)
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	status := models.ReceiptOK
	switch {
	case anyCritical:
		status = models.ReceiptCritical
	case anyDiff:
		status = models.ReceiptWarning
	}
	result.ReceiptStatus = status
	if err := receipts.SetStatus(ctx, db, receiptID, status); err != nil {
		return result, err
	}
	return result, nil
}

// Reclassify refines a stored discrepancy into damage or swap after human
// inspection. Quantities and the computed difference stay immutable; only
// the classification and its reason change, and a reason is mandatory.
func Reclassify(ctx context.Context, db *sqlite.DB, comparisonID, diffType, reason string) error {
	if diffType != models.DiffDamage && diffType != models.DiffSwap {
		return apperr.Validation("difference_type must be damage or swap")
	}
	if reason == "" {
		return apperr.Validation("a reason is required to reclassify")
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Comparison)(nil)).
			Set("difference_type = ?", diffType).
			Set("reason = ?", reason).
			Where("id = ?", comparisonID).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("comparison", comparisonID)
		}
		return nil
	})
}

// ListFilter narrows the comparison list. From/To are inclusive day
// bounds in 2006-01-02 layout; empty means unbounded.
type ListFilter struct {
	ContractID string
	ReceiptID  string
	SkuID      string
	DiffType   string
	From       string
	To         string
}

// List returns comparison rows with the SKU and pallet tag resolved in
// the same statement, ordered by discrepancy size, biggest first.
func List(ctx context.Context, db *sqlite.DB, filter ListFilter) ([]ComparisonRow, error) {
	rows := make([]ComparisonRow, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			TableExpr("comparisons AS cmp").
			ColumnExpr("cmp.id AS id").
			ColumnExpr("qt.code AS pallet_tag").
			ColumnExpr("si.sku AS sku").
			ColumnExpr("cmp.quantity_origin AS qty_origin").
			ColumnExpr("cmp.quantity_destination AS qty_dest").
			ColumnExpr("cmp.difference AS difference").
			ColumnExpr("COALESCE(cmp.difference_type, '') AS diff_type").
			ColumnExpr("COALESCE(cmp.reason, '') AS reason").
			ColumnExpr("strftime('%Y-%m-%d %H:%M', cmp.created_at) AS created_at").
			Join("JOIN stock_items si ON si.id = cmp.sku_id").
			Join("JOIN pallets p ON p.id = cmp.pallet_id").
			Join("JOIN qr_tags qt ON qt.id = p.qr_tag_id").
			OrderExpr("ABS(cmp.difference) DESC, cmp.created_at DESC").
			Limit(500)
		if filter.ContractID != "" {
			q = q.Where("p.contract_id = ?", filter.ContractID)
		}
		if filter.ReceiptID != "" {
			q = q.Where("cmp.receipt_id = ?", filter.ReceiptID)
		}
		if filter.SkuID != "" {
			q = q.Where("cmp.sku_id = ?", filter.SkuID)
		}
		if filter.DiffType != "" {
			q = q.Where("cmp.difference_type = ?", filter.DiffType)
		}
		if filter.From != "" {
			q = q.Where("DATE(cmp.created_at) >= ?", filter.From)
		}
		if filter.To != "" {
			q = q.Where("DATE(cmp.created_at) <= ?", filter.To)
		}
		return q.Scan(ctx, &rows)
	})
	return rows, err
}

// FindCritical returns comparisons at or beyond the threshold.
func FindCritical(ctx context.Context, db *sqlite.DB, threshold int64) ([]models.Comparison, error) {
	if threshold < 1 {
		return nil, apperr.Validation("threshold must be >= 1")
	}
	list := make([]models.Comparison, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&list).
			Where("ABS(cmp.difference) >= ?", threshold).
			OrderExpr("ABS(cmp.difference) DESC, cmp.created_at DESC").
			Limit(500).
			Scan(ctx)
	})
	return list, err
}

// LoadByID fetches one comparison.
func LoadByID(ctx context.Context, db *sqlite.DB, comparisonID string) (models.Comparison, error) {
	var cmp models.Comparison
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&cmp).Where("cmp.id = ?", comparisonID).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return cmp, apperr.NotFound("comparison", comparisonID)
	}
	return cmp, err
}

// SKUStat ranks one SKU by how often and how badly it diverges.
type SKUStat struct {
	SkuID    string `json:"sku_id"`
	SKU      string `json:"sku"`
	Count    int64  `json:"count"`
	TotalAbs int64  `json:"total_abs"`
}

// Stats summarizes all stored discrepancies.
type Stats struct {
	Total     int64     `json:"total"`
	Shortages int64     `json:"shortages"`
	Overages  int64     `json:"overages"`
	Damage    int64     `json:"damage"`
	Swap      int64     `json:"swap"`
	SumAbs    int64     `json:"sum_abs"`
	MeanAbs   float64   `json:"mean_abs"`
	TopSKUs   []SKUStat `json:"top_skus"`
}

// StatsFilter bounds the aggregation to one contract and/or an inclusive
// day window (2006-01-02 layout). Zero values mean no bound.
type StatsFilter struct {
	ContractID string
	From       string
	To         string
}

func (f StatsFilter) whereClause() (string, []any) {
	where := "1 = 1"
	args := make([]any, 0, 3)
	if f.ContractID != "" {
		where += " AND p.contract_id = ?"
		args = append(args, f.ContractID)
	}
	if f.From != "" {
		where += " AND DATE(cmp.created_at) >= ?"
		args = append(args, f.From)
	}
	if f.To != "" {
		where += " AND DATE(cmp.created_at) <= ?"
		args = append(args, f.To)
	}
	return where, args
}

// ComputeStats aggregates the comparison table over the filter window,
// with the top n SKUs ranked by occurrence count, then total absolute
// difference, then SKU id.
func ComputeStats(ctx context.Context, db *sqlite.DB, filter StatsFilter, topN int) (Stats, error) {
	if topN < 1 {
		topN = 5
	}
	where, args := filter.whereClause()

	var stats Stats
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewRaw(`
			SELECT
				COUNT(1),
				COALESCE(SUM(cmp.difference_type = 'shortage'), 0),
				COALESCE(SUM(cmp.difference_type = 'overage'), 0),
				COALESCE(SUM(cmp.difference_type = 'damage'), 0),
				COALESCE(SUM(cmp.difference_type = 'swap'), 0),
				COALESCE(SUM(ABS(cmp.difference)), 0)
			FROM comparisons cmp
			JOIN pallets p ON p.id = cmp.pallet_id
			WHERE `+where, args...).
			Scan(ctx, &stats.Total, &stats.Shortages, &stats.Overages, &stats.Damage, &stats.Swap, &stats.SumAbs)
		if err != nil {
			return err
		}
		if stats.Total > 0 {
			stats.MeanAbs = float64(stats.SumAbs) / float64(stats.Total)
		}

		topArgs := make([]any, 0, len(args)+1)
		topArgs = append(topArgs, args...)
		topArgs = append(topArgs, topN)
		rows, err := tx.QueryContext(ctx, `
			SELECT cmp.sku_id, si.sku, COUNT(1) AS n, SUM(ABS(cmp.difference)) AS total_abs
			FROM comparisons cmp
			JOIN stock_items si ON si.id = cmp.sku_id
			JOIN pallets p ON p.id = cmp.pallet_id
			WHERE `+where+`
			GROUP BY cmp.sku_id, si.sku
			ORDER BY n DESC, total_abs DESC, cmp.sku_id ASC
			LIMIT ?`, topArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s SKUStat
			if err := rows.Scan(&s.SkuID, &s.SKU, &s.Count, &s.TotalAbs); err != nil {
				return err
			}
			stats.TopSKUs = append(stats.TopSKUs, s)
		}
		return rows.Err()
	})
	return stats, err
}
