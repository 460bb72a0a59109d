package certificates

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfuentesc/siidte/internal/common"
	"github.com/mfuentesc/siidte/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func sampleEnvelope() *models.CertificateEnvelope {
	return &models.CertificateEnvelope{
		AccountID:     "acc-1",
		Subject:       "Juan Pérez",
		Issuer:        "E-CERT CA",
		ValidFrom:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:       time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		RUT:           "12345678-9",
		CertPEM:       "-----BEGIN CERTIFICATE-----",
		KeyCiphertext: []byte("ct"),
		Salt:          []byte("salt"),
		Nonce:         []byte("nonce"),
		IssuedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestUpsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	env := sampleEnvelope()
	mock.ExpectExec(`INSERT INTO certificates .* ON CONFLICT \(account_id\)`).
		WithArgs(env.AccountID, env.Subject, env.Issuer, env.ValidFrom, env.ValidTo,
			sql.NullString{String: env.RUT, Valid: true},
			env.CertPEM, env.KeyCiphertext, env.Salt, env.Nonce, env.IssuedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), env))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_EmptyRUTStoredAsNull(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	env := sampleEnvelope()
	env.RUT = ""
	mock.ExpectExec(`INSERT INTO certificates`).
		WithArgs(env.AccountID, env.Subject, env.Issuer, env.ValidFrom, env.ValidTo,
			sql.NullString{},
			env.CertPEM, env.KeyCiphertext, env.Salt, env.Nonce, env.IssuedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), env))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO certificates`).
		WillReturnError(errors.New("db is down"))

	err := repo.Upsert(context.Background(), sampleEnvelope())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is down")
}

func TestGetByAccount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	env := sampleEnvelope()
	rows := sqlmock.NewRows([]string{
		"account_id", "subject", "issuer", "valid_from", "valid_to", "rut",
		"cert_pem", "key_ciphertext", "salt", "nonce", "issued_at",
	}).AddRow(env.AccountID, env.Subject, env.Issuer, env.ValidFrom, env.ValidTo, env.RUT,
		env.CertPEM, env.KeyCiphertext, env.Salt, env.Nonce, env.IssuedAt)

	mock.ExpectQuery(`SELECT .* FROM certificates WHERE account_id = \$1`).
		WithArgs("acc-1").
		WillReturnRows(rows)

	got, err := repo.GetByAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, env, got)
}

func TestGetByAccount_NullRUT(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	env := sampleEnvelope()
	rows := sqlmock.NewRows([]string{
		"account_id", "subject", "issuer", "valid_from", "valid_to", "rut",
		"cert_pem", "key_ciphertext", "salt", "nonce", "issued_at",
	}).AddRow(env.AccountID, env.Subject, env.Issuer, env.ValidFrom, env.ValidTo, nil,
		env.CertPEM, env.KeyCiphertext, env.Salt, env.Nonce, env.IssuedAt)

	mock.ExpectQuery(`SELECT .* FROM certificates`).
		WithArgs("acc-1").
		WillReturnRows(rows)

	got, err := repo.GetByAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Empty(t, got.RUT)
}

func TestGetByAccount_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM certificates`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByAccount(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDeleteByAccount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM certificates WHERE account_id = \$1`).
		WithArgs("acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteByAccount(context.Background(), "acc-1"))
}

func TestDeleteByAccount_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM certificates WHERE account_id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteByAccount(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
