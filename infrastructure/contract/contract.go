package contract

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

type CreateInput struct {
	Name       string
	ClientName string
	Code       string
	Status     string
}

// PalletCounts summarizes a contract's pallets by lifecycle stage.
type PalletCounts struct {
	OpenCount      int
	InTransitCount int
	FinalizedCount int
}

func NormalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusArchived:
		return StatusArchived
	default:
		return StatusActive
	}
}

func NormalizeListFilter(filter string) string {
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case StatusActive:
		return StatusActive
	case StatusArchived:
		return StatusArchived
	case "all":
		return "all"
	default:
		return StatusActive
	}
}

func List(ctx context.Context, db *sqlite.DB, filter string) ([]models.Contract, error) {
	filter = NormalizeListFilter(filter)
	contracts := make([]models.Contract, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&contracts).OrderExpr("created_at DESC, id DESC")
		if filter == StatusActive || filter == StatusArchived {
			q = q.Where("status = ?", filter)
		}
		return q.Scan(ctx)
	})
	return contracts, err
}

func LoadByID(ctx context.Context, db *sqlite.DB, id string) (models.Contract, error) {
	var c models.Contract
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&c).Where("id = ?", id).Limit(1).Scan(ctx)
	})
	return c, err
}

// ResolveSessionActiveContractID keeps the current contract when it still
// exists, otherwise falls back to the newest active contract, then to any
// contract at all.
func ResolveSessionActiveContractID(ctx context.Context, db *sqlite.DB, current *string) (*string, error) {
	if current != nil && *current != "" {
		_, err := LoadByID(ctx, db, *current)
		if err == nil {
			return strPtr(*current), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	activeID, err := firstIDByStatus(ctx, db, StatusActive)
	if err != nil {
		return nil, err
	}
	if activeID != nil {
		return activeID, nil
	}
	return firstID(ctx, db)
}

func SetSessionActiveContractID(ctx context.Context, db *sqlite.DB, sessionID string, contractID *string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if contractID == nil || *contractID == "" {
			_, err := tx.ExecContext(ctx, `UPDATE sessions SET active_contract_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, sessionID)
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET active_contract_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, *contractID, sessionID)
		return err
	})
}

func Create(ctx context.Context, db *sqlite.DB, input CreateInput) (models.Contract, error) {
	var contract models.Contract
	name := strings.TrimSpace(input.Name)
	clientName := strings.TrimSpace(input.ClientName)
	if name == "" {
		return contract, fmt.Errorf("contract name is required")
	}
	if clientName == "" {
		return contract, fmt.Errorf("client name is required")
	}

	status := NormalizeStatus(input.Status)
	code := normalizeCode(input.Code)
	if code == "" {
		code = normalizeCode(name)
	}
	if code == "" {
		code = "contract"
	}

	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		uniqueCode, err := nextUniqueCode(ctx, tx, code)
		if err != nil {
			return err
		}

		contract = models.Contract{
			ID:         uuid.NewString(),
			Code:       uniqueCode,
			Name:       name,
			ClientName: clientName,
			Status:     status,
		}
		_, err = tx.NewInsert().Model(&contract).Exec(ctx)
		return err
	})
	return contract, err
}

func SetStatus(ctx context.Context, db *sqlite.DB, contractID, status string) error {
	status = NormalizeStatus(status)
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE contracts SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, contractID)
		return err
	})
}

func IsActiveByID(ctx context.Context, db *sqlite.DB, contractID string) (bool, error) {
	var status string
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT status FROM contracts WHERE id = ?`, contractID).Scan(ctx, &status)
	})
	if err != nil {
		return false, err
	}
	return status == StatusActive, nil
}

// PalletCountsByContractIDs groups pallet counts for the contract list page.
func PalletCountsByContractIDs(ctx context.Context, db *sqlite.DB, contractIDs []string) (map[string]PalletCounts, error) {
	counts := make(map[string]PalletCounts)
	if len(contractIDs) == 0 {
		return counts, nil
	}

	unique := make(map[string]struct{}, len(contractIDs))
	filtered := make([]string, 0, len(contractIDs))
	for _, contractID := range contractIDs {
		if contractID == "" {
			continue
		}
		if _, exists := unique[contractID]; exists {
			continue
		}
		unique[contractID] = struct{}{}
		filtered = append(filtered, contractID)
	}
	if len(filtered) == 0 {
		return counts, nil
	}

	rows := make([]struct {
		ContractID string `bun:"contract_id"`
		Status     string `bun:"status"`
		Count      int    `bun:"status_count"`
	}, 0)

	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT contract_id, status, COUNT(1) AS status_count
FROM pallets
WHERE contract_id IN (?)
  AND status IN ('draft', 'sealed', 'in_transit', 'received', 'finalized')
GROUP BY contract_id, status`, bun.In(filtered)).Scan(ctx, &rows)
	})
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		c := counts[row.ContractID]
		switch row.Status {
		case models.PalletDraft, models.PalletSealed:
			c.OpenCount += row.Count
		case models.PalletInTransit, models.PalletReceived:
			c.InTransitCount += row.Count
		case models.PalletFinalized:
			c.FinalizedCount += row.Count
		}
		counts[row.ContractID] = c
	}

	return counts, nil
}

func firstIDByStatus(ctx context.Context, db *sqlite.DB, status string) (*string, error) {
	var id string
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT id FROM contracts WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT 1`, status).Scan(ctx, &id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return strPtr(id), nil
}

func firstID(ctx context.Context, db *sqlite.DB) (*string, error) {
	var id string
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT id FROM contracts ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(ctx, &id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return strPtr(id), nil
}

var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeCode(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = slugRegex.ReplaceAllString(v, "-")
	v = strings.Trim(v, "-")
	if len(v) > 64 {
		v = v[:64]
	}
	return v
}

func nextUniqueCode(ctx context.Context, tx bun.Tx, baseCode string) (string, error) {
	try := baseCode
	for i := 0; i < 1000; i++ {
		var count int
		if err := tx.NewRaw(`SELECT COUNT(1) FROM contracts WHERE code = ?`, try).Scan(ctx, &count); err != nil {
			return "", err
		}
		if count == 0 {
			return try, nil
		}
		try = fmt.Sprintf("%s-%d", baseCode, i+2)
	}
	return "", fmt.Errorf("unable to find unique contract code")
}

func strPtr(v string) *string {
	return &v
}
