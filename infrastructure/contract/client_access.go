package contract

import (
	"context"
	"fmt"
	"sort"

	"github.com/uptrace/bun"

	"palletrack/infrastructure/sqlite"
	"palletrack/models"
)

// ListClientContracts returns contracts the client user can access.
func ListClientContracts(ctx context.Context, db *sqlite.DB, userID int64) ([]models.Contract, error) {
	contracts := make([]models.Contract, 0)
	if userID <= 0 {
		return contracts, nil
	}

	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT c.id, c.code, c.name, c.client_name, c.status, c.created_at, c.updated_at
FROM contracts c
JOIN client_contract_access cca ON cca.contract_id = c.id
WHERE cca.user_id = ?
ORDER BY
  CASE WHEN c.status = 'active' THEN 0 ELSE 1 END,
  c.created_at DESC,
  c.id DESC`, userID).Scan(ctx, &contracts)
	})
	return contracts, err
}

// ListClientContractIDs returns contract IDs the client user can access.
func ListClientContractIDs(ctx context.Context, db *sqlite.DB, userID int64) ([]string, error) {
	ids := make([]string, 0)
	if userID <= 0 {
		return ids, nil
	}
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT c.id
FROM contracts c
JOIN client_contract_access cca ON cca.contract_id = c.id
WHERE cca.user_id = ?
ORDER BY
  CASE WHEN c.status = 'active' THEN 0 ELSE 1 END,
  c.created_at DESC,
  c.id DESC`, userID).Scan(ctx, &ids)
	})
	return ids, err
}

// ClientHasContractAccess returns true when the client user has access to contractID.
func ClientHasContractAccess(ctx context.Context, db *sqlite.DB, userID int64, contractID string) (bool, error) {
	if userID <= 0 || contractID == "" {
		return false, nil
	}
	count := 0
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(1) FROM client_contract_access WHERE user_id = ? AND contract_id = ?`, userID, contractID).Scan(ctx, &count)
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ResolveClientActiveContractID picks an allowed active contract for this client user.
func ResolveClientActiveContractID(ctx context.Context, db *sqlite.DB, userID int64, current *string) (*string, error) {
	ids, err := ListClientContractIDs(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if current != nil && *current != "" {
		for _, id := range ids {
			if id == *current {
				return strPtr(id), nil
			}
		}
	}
	return strPtr(ids[0]), nil
}

// SetClientContractAccess replaces all contract access rows for a client user.
func SetClientContractAccess(ctx context.Context, db *sqlite.DB, userID int64, contractIDs []string) error {
	if userID <= 0 {
		return fmt.Errorf("client user is required")
	}
	filtered := uniqueContractIDs(contractIDs)
	if len(filtered) == 0 {
		return fmt.Errorf("at least one contract is required")
	}

	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		role := ""
		if err := tx.NewRaw(`SELECT role FROM users WHERE id = ?`, userID).Scan(ctx, &role); err != nil {
			return err
		}
		if role != "client" {
			return fmt.Errorf("user must have client role")
		}

		existing := 0
		if err := tx.NewRaw(`SELECT COUNT(1) FROM contracts WHERE id IN (?)`, bun.In(filtered)).Scan(ctx, &existing); err != nil {
			return err
		}
		if existing != len(filtered) {
			return fmt.Errorf("one or more contracts are invalid")
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM client_contract_access WHERE user_id = ?`, userID); err != nil {
			return err
		}
		for _, contractID := range filtered {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO client_contract_access (user_id, contract_id, created_at)
VALUES (?, ?, CURRENT_TIMESTAMP)`, userID, contractID); err != nil {
				return err
			}
		}
		return nil
	})
}

func uniqueContractIDs(contractIDs []string) []string {
	seen := make(map[string]struct{}, len(contractIDs))
	ids := make([]string, 0, len(contractIDs))
	for _, contractID := range contractIDs {
		if contractID == "" {
			continue
		}
		if _, ok := seen[contractID]; ok {
			continue
		}
		seen[contractID] = struct{}{}
		ids = append(ids, contractID)
	}
	sort.Strings(ids)
	return ids
}
