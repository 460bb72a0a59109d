package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"database/sql"
	"encoding/pem"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/mfuentesc/siidte/internal/dbx"
	"github.com/mfuentesc/siidte/internal/keyvault"
	"github.com/mfuentesc/siidte/internal/logging"
	"github.com/mfuentesc/siidte/internal/server/models"
	"github.com/mfuentesc/siidte/internal/server/repositories/authsessions"
	"github.com/mfuentesc/siidte/internal/server/repositories/certificates"
	"github.com/mfuentesc/siidte/internal/server/repositories/invoices"
	"github.com/mfuentesc/siidte/internal/server/repositories/repomanager"
)

// -------- test fakes --------

type fakeCertsRepo struct {
	certificates.Repository
	env    *models.CertificateEnvelope
	getErr error

	upserted  *models.CertificateEnvelope
	upsertErr error

	deleteErr error
}

func (f *fakeCertsRepo) Upsert(ctx context.Context, env *models.CertificateEnvelope) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = env
	return nil
}

func (f *fakeCertsRepo) GetByAccount(ctx context.Context, accountID string) (*models.CertificateEnvelope, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.env, nil
}

func (f *fakeCertsRepo) DeleteByAccount(ctx context.Context, accountID string) error {
	return f.deleteErr
}

type fakeSessionsRepo struct {
	authsessions.Repository
	session *models.AuthSession
	getErr  error

	setSeedAccount string
	setSeedValue   string
	setSeedAt      time.Time
	setSeedErr     error

	setTokenValue string
	setTokenAt    time.Time
	setTokenErr   error

	seedCleared bool
	clearErr    error
}

func (f *fakeSessionsRepo) Get(ctx context.Context, accountID string) (*models.AuthSession, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.session, nil
}

func (f *fakeSessionsRepo) SetSeed(ctx context.Context, accountID, seed string, issuedAt time.Time) error {
	if f.setSeedErr != nil {
		return f.setSeedErr
	}
	f.setSeedAccount = accountID
	f.setSeedValue = seed
	f.setSeedAt = issuedAt
	return nil
}

func (f *fakeSessionsRepo) SetToken(ctx context.Context, accountID, token string, issuedAt time.Time) error {
	if f.setTokenErr != nil {
		return f.setTokenErr
	}
	f.setTokenValue = token
	f.setTokenAt = issuedAt
	return nil
}

func (f *fakeSessionsRepo) ClearSeed(ctx context.Context, accountID string) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.seedCleared = true
	if f.session != nil {
		f.session.Seed = ""
		f.session.SeedIssuedAt = time.Time{}
	}
	return nil
}

type fakeInvoicesRepo struct {
	invoices.Repository
	invoice *models.Invoice
	getErr  error

	updatedEstado string
	updateErr     error
}

func (f *fakeInvoicesRepo) GetByID(ctx context.Context, accountID string, invoiceID int64) (*models.Invoice, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.invoice, nil
}

func (f *fakeInvoicesRepo) UpdateEstado(ctx context.Context, accountID string, invoiceID int64, estado string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updatedEstado = estado
	if f.invoice != nil {
		f.invoice.Estado = estado
	}
	return nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	certs    *fakeCertsRepo
	sessions *fakeSessionsRepo
	invs     *fakeInvoicesRepo
}

func (m *fakeRepoManager) Certificates(db dbx.DBTX) certificates.Repository { return m.certs }
func (m *fakeRepoManager) AuthSessions(db dbx.DBTX) authsessions.Repository { return m.sessions }
func (m *fakeRepoManager) Invoices(db dbx.DBTX) invoices.Repository         { return m.invs }

// -------- helpers --------

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

// testKeyAndCertPEM generates a throwaway RSA key and self-signed
// certificate for signing flows.
func testKeyAndCertPEM(t *testing.T) (keyPEM, certPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "contribuyente de prueba", SerialNumber: "11111111-1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// sealedEnvelope builds a stored certificate envelope whose key opens with
// password.
func sealedEnvelope(t *testing.T, accountID, password string) *models.CertificateEnvelope {
	t.Helper()

	keyPEM, certPEM := testKeyAndCertPEM(t)
	sealed, err := keyvault.Seal(keyPEM, password)
	require.NoError(t, err)

	return &models.CertificateEnvelope{
		AccountID:     accountID,
		Subject:       "contribuyente de prueba",
		Issuer:        "contribuyente de prueba",
		RUT:           "11111111-1",
		CertPEM:       string(certPEM),
		KeyCiphertext: sealed.Ciphertext,
		Salt:          sealed.Salt,
		Nonce:         sealed.Nonce,
	}
}
