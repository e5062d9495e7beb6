package adminusers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"palletrack/frontend/login"
	"palletrack/infrastructure/argon"
	contractinfra "palletrack/infrastructure/contract"
	"palletrack/infrastructure/rbac"
	"palletrack/infrastructure/sqlite"
)

var (
	ErrUsernameRequired       = errors.New("username is required")
	ErrPasswordRequired       = errors.New("password is required")
	ErrInvalidRole            = errors.New("role must be admin, operator or client")
	ErrClientContractRequired = errors.New("client users need at least one contract")
	ErrUsernameExists         = errors.New("username already exists")
)

func LoadUsersPageData(ctx context.Context, db *sqlite.DB) (PageData, error) {
	data := PageData{Users: make([]UserView, 0), Contracts: make([]ContractOption, 0)}

	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT u.id, u.username, u.role,
       COALESCE(GROUP_CONCAT(c.name, ', '), '') AS client_contracts
FROM users u
LEFT JOIN client_contract_access cca ON cca.user_id = u.id
LEFT JOIN contracts c ON c.id = cca.contract_id
GROUP BY u.id
ORDER BY u.id ASC`).Scan(ctx, &data.Users)
	})
	if err != nil {
		return PageData{}, err
	}

	contracts, err := contractinfra.List(ctx, db, contractinfra.StatusActive)
	if err != nil {
		return PageData{}, err
	}
	for _, c := range contracts {
		data.Contracts = append(data.Contracts, ContractOption{
			ID:    c.ID,
			Label: fmt.Sprintf("%s (%s)", c.Name, c.ClientName),
		})
	}
	return data, nil
}

func CreateUser(ctx context.Context, db *sqlite.DB, username, password, role string, clientContractIDs []string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}
	if strings.TrimSpace(password) == "" {
		return ErrPasswordRequired
	}
	switch role {
	case rbac.RoleAdmin, rbac.RoleOperator, rbac.RoleClient:
	default:
		return ErrInvalidRole
	}
	if role == rbac.RoleClient && len(clientContractIDs) == 0 {
		return ErrClientContractRequired
	}
	if err := login.ValidatePasswordPolicy(password); err != nil {
		return err
	}

	hash, err := argon.CreateHash(password, argon.DefaultParams)
	if err != nil {
		return err
	}

	var userID int64
	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var count int
		if err := tx.NewRaw(`SELECT COUNT(1) FROM users WHERE LOWER(username) = LOWER(?)`, username).Scan(ctx, &count); err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameExists
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO users (username, password_hash, role, created_at, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, username, hash, role)
		if err != nil {
			return err
		}
		userID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return err
	}

	if role == rbac.RoleClient {
		return contractinfra.SetClientContractAccess(ctx, db, userID, clientContractIDs)
	}
	return nil
}

// UserExists reports whether the user id refers to a stored user.
func UserExists(ctx context.Context, db *sqlite.DB, userID int64) (bool, error) {
	var count int
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(1) FROM users WHERE id = ?`, userID).Scan(ctx, &count)
	})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	return count > 0, nil
}
