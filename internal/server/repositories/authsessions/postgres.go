// Package authsessions persists the per-account SII challenge/response
// state. The seed and token columns are nullable: NULL means the field was
// never set or has been consumed.
package authsessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mfuentesc/siidte/internal/common"
	"github.com/mfuentesc/siidte/internal/dbx"
	"github.com/mfuentesc/siidte/internal/server/models"
)

// PostgresRepository implements auth session storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get loads the account's session. Returns common.ErrorNotFound when the
// account has never requested a seed or token.
func (r *PostgresRepository) Get(ctx context.Context, accountID string) (*models.AuthSession, error) {
	query := `
		SELECT account_id, seed, seed_issued_at, token, token_issued_at
		FROM auth_sessions WHERE account_id = $1
	`
	var s models.AuthSession
	var seed, token sql.NullString
	var seedAt, tokenAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&s.AccountID, &seed, &seedAt, &token, &tokenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.Seed = seed.String
	s.SeedIssuedAt = seedAt.Time
	s.Token = token.String
	s.TokenIssuedAt = tokenAt.Time
	return &s, nil
}

// SetSeed stores a fresh seed for the account, replacing any previous one.
// The token columns are untouched.
func (r *PostgresRepository) SetSeed(ctx context.Context, accountID, seed string, issuedAt time.Time) error {
	query := `
		INSERT INTO auth_sessions (account_id, seed, seed_issued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id)
		DO UPDATE SET seed = EXCLUDED.seed, seed_issued_at = EXCLUDED.seed_issued_at;
	`
	_, err := r.db.ExecContext(ctx, query, accountID, seed, issuedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SetToken stores the minted token. Callers run it in the same transaction
// as ClearSeed, so a seed can never be exchanged twice.
func (r *PostgresRepository) SetToken(ctx context.Context, accountID, token string, issuedAt time.Time) error {
	query := `
		INSERT INTO auth_sessions (account_id, token, token_issued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id)
		DO UPDATE SET
			token = EXCLUDED.token,
			token_issued_at = EXCLUDED.token_issued_at;
	`
	_, err := r.db.ExecContext(ctx, query, accountID, token, issuedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ClearSeed marks the seed as consumed.
func (r *PostgresRepository) ClearSeed(ctx context.Context, accountID string) error {
	query := `UPDATE auth_sessions SET seed = NULL, seed_issued_at = NULL WHERE account_id = $1`
	_, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
