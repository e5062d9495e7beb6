package exports

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/uptrace/bun"

	"palletrack/infrastructure/sqlite"
)

// writeComparisonsCSV dumps every discrepancy recorded for the contract,
// optionally narrowed to a single receipt.
func writeComparisonsCSV(ctx context.Context, db *sqlite.DB, w io.Writer, contractID string, receiptID *string) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"receipt_id", "pallet_id", "tag_code", "sku", "description", "qty_origin", "qty_destination", "difference", "type", "critical", "reason"}
	if err := writer.Write(header); err != nil {
		return err
	}

	type row struct {
		ReceiptID   string `bun:"receipt_id"`
		PalletID    string `bun:"pallet_id"`
		TagCode     string `bun:"tag_code"`
		SKU         string `bun:"sku"`
		Description string `bun:"description"`
		QtyOrigin   int64  `bun:"qty_origin"`
		QtyDest     int64  `bun:"qty_destination"`
		Difference  int64  `bun:"difference"`
		DiffType    string `bun:"diff_type"`
		IsCritical  int64  `bun:"is_critical"`
		Reason      string `bun:"reason"`
	}

	rows := make([]row, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := `
SELECT c.receipt_id, c.pallet_id,
       COALESCE(qt.code, '') AS tag_code,
       si.sku, si.description,
       c.quantity_origin AS qty_origin,
       c.quantity_destination AS qty_destination,
       c.difference,
       COALESCE(c.difference_type, '') AS diff_type,
       c.is_critical,
       COALESCE(c.reason, '') AS reason
FROM comparisons c
JOIN stock_items si ON si.id = c.sku_id
JOIN pallets p ON p.id = c.pallet_id
LEFT JOIN qr_tags qt ON qt.id = p.qr_tag_id
WHERE p.contract_id = ?`
		args := []any{contractID}
		if receiptID != nil {
			q += " AND c.receipt_id = ?"
			args = append(args, *receiptID)
		}
		q += " ORDER BY c.receipt_id ASC, ABS(c.difference) DESC, si.sku ASC"
		return tx.NewRaw(q, args...).Scan(ctx, &rows)
	})
	if err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			r.ReceiptID,
			r.PalletID,
			r.TagCode,
			r.SKU,
			r.Description,
			strconv.FormatInt(r.QtyOrigin, 10),
			strconv.FormatInt(r.QtyDest, 10),
			strconv.FormatInt(r.Difference, 10),
			r.DiffType,
			boolMark(r.IsCritical != 0),
			r.Reason,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writePalletStatusCSV(ctx context.Context, db *sqlite.DB, w io.Writer, contractID string) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"pallet_id", "tag_code", "status", "line_count", "created_at", "sealed_at", "finalized_at"}); err != nil {
		return err
	}

	type row struct {
		ID          string `bun:"id"`
		TagCode     string `bun:"tag_code"`
		Status      string `bun:"status"`
		LineCount   int64  `bun:"line_count"`
		CreatedAt   string `bun:"created_at"`
		SealedAt    string `bun:"sealed_at"`
		FinalizedAt string `bun:"finalized_at"`
	}

	rows := make([]row, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT p.id,
       COALESCE(qt.code, '') AS tag_code,
       p.status,
       (SELECT COUNT(*) FROM pallet_items pi WHERE pi.pallet_id = p.id) AS line_count,
       strftime('%d/%m/%Y %H:%M', p.created_at) AS created_at,
       COALESCE(strftime('%d/%m/%Y %H:%M', p.sealed_at), '') AS sealed_at,
       COALESCE(strftime('%d/%m/%Y %H:%M', p.finalized_at), '') AS finalized_at
FROM pallets p
LEFT JOIN qr_tags qt ON qt.id = p.qr_tag_id
WHERE p.contract_id = ?
ORDER BY p.created_at ASC, p.id ASC`, contractID).Scan(ctx, &rows)
	})
	if err != nil {
		return err
	}

	for _, r := range rows {
		if err := writer.Write([]string{r.ID, r.TagCode, r.Status, strconv.FormatInt(r.LineCount, 10), r.CreatedAt, r.SealedAt, r.FinalizedAt}); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeReceiptsCSV(ctx context.Context, db *sqlite.DB, w io.Writer, contractID string) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"receipt_id", "subject", "location", "status", "received_by", "received_at", "notes"}); err != nil {
		return err
	}

	type row struct {
		ID         string `bun:"id"`
		Subject    string `bun:"subject"`
		Location   string `bun:"location"`
		Status     string `bun:"status"`
		ReceivedBy string `bun:"received_by"`
		ReceivedAt string `bun:"received_at"`
		Notes      string `bun:"notes"`
	}

	rows := make([]row, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT r.id,
       COALESCE(m.manifest_number, qt.code, '') AS subject,
       l.code AS location,
       r.status,
       u.username AS received_by,
       strftime('%d/%m/%Y %H:%M', r.received_at) AS received_at,
       COALESCE(r.notes, '') AS notes
FROM receipts r
JOIN locations l ON l.id = r.location_id
JOIN users u ON u.id = r.received_by
LEFT JOIN manifests m ON m.id = r.manifest_id
LEFT JOIN pallets p ON p.id = r.pallet_id
LEFT JOIN qr_tags qt ON qt.id = p.qr_tag_id
WHERE COALESCE(m.contract_id, p.contract_id) = ?
ORDER BY r.received_at DESC, r.id ASC`, contractID).Scan(ctx, &rows)
	})
	if err != nil {
		return err
	}

	for _, r := range rows {
		if err := writer.Write([]string{r.ID, r.Subject, r.Location, r.Status, r.ReceivedBy, r.ReceivedAt, r.Notes}); err != nil {
			return err
		}
	}
	return writer.Error()
}

func recordExportRun(ctx context.Context, db *sqlite.DB, userID *int64, contractID *string, exportType string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var uid any = nil
		var cid any = nil
		if userID != nil {
			uid = *userID
		}
		if contractID != nil {
			cid = *contractID
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO export_runs (user_id, contract_id, export_type, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`, uid, cid, exportType)
		return err
	})
}

func receiptBelongsToContract(ctx context.Context, db *sqlite.DB, contractID, receiptID string) (bool, error) {
	var count int
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT COUNT(1) FROM receipts r
LEFT JOIN manifests m ON m.id = r.manifest_id
LEFT JOIN pallets p ON p.id = r.pallet_id
WHERE r.id = ? AND COALESCE(m.contract_id, p.contract_id) = ?`, receiptID, contractID).Scan(ctx, &count)
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func exportTypeReceiptComparisons(receiptID string) string {
	return "comparisons_csv:" + receiptID
}

func boolMark(v bool) string {
	if v {
		return "yes"
	}
	return ""
}
