// Package certificates provides the PostgreSQL-backed store for sealed
// certificate envelopes, one per account.
package certificates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mfuentesc/siidte/internal/common"
	"github.com/mfuentesc/siidte/internal/dbx"
	"github.com/mfuentesc/siidte/internal/server/models"
)

// PostgresRepository implements certificate storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert stores the envelope for its account, replacing any previous one
// wholesale. Re-importing a certificate is last-write-wins.
func (r *PostgresRepository) Upsert(ctx context.Context, env *models.CertificateEnvelope) error {
	query := `
		INSERT INTO certificates (account_id, subject, issuer, valid_from, valid_to, rut,
			cert_pem, key_ciphertext, salt, nonce, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_id)
		DO UPDATE SET
			subject = EXCLUDED.subject,
			issuer = EXCLUDED.issuer,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			rut = EXCLUDED.rut,
			cert_pem = EXCLUDED.cert_pem,
			key_ciphertext = EXCLUDED.key_ciphertext,
			salt = EXCLUDED.salt,
			nonce = EXCLUDED.nonce,
			issued_at = EXCLUDED.issued_at;
	`
	_, err := r.db.ExecContext(ctx, query,
		env.AccountID, env.Subject, env.Issuer, env.ValidFrom, env.ValidTo, nullString(env.RUT),
		env.CertPEM, env.KeyCiphertext, env.Salt, env.Nonce, env.IssuedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByAccount loads the account's envelope. Returns common.ErrorNotFound
// when no certificate has been imported.
func (r *PostgresRepository) GetByAccount(ctx context.Context, accountID string) (*models.CertificateEnvelope, error) {
	query := `
		SELECT account_id, subject, issuer, valid_from, valid_to, rut,
			cert_pem, key_ciphertext, salt, nonce, issued_at
		FROM certificates WHERE account_id = $1
	`
	var env models.CertificateEnvelope
	var rut sql.NullString
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&env.AccountID, &env.Subject, &env.Issuer, &env.ValidFrom, &env.ValidTo, &rut,
		&env.CertPEM, &env.KeyCiphertext, &env.Salt, &env.Nonce, &env.IssuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	env.RUT = rut.String
	return &env, nil
}

// DeleteByAccount removes the account's envelope. Returns common.ErrorNotFound
// when there is nothing to delete.
func (r *PostgresRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM certificates WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
