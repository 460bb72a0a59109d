// Package services implements the server-side use cases: certificate
// lifecycle, SII authentication and invoice submission. Services coordinate
// the pure domain packages (certx, keyvault, xmldsig, dte, sii) with the
// repositories and own all state transitions.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/mfuentesc/siidte/internal/certx"
	"github.com/mfuentesc/siidte/internal/common"
	"github.com/mfuentesc/siidte/internal/keyvault"
	"github.com/mfuentesc/siidte/internal/logging"
	"github.com/mfuentesc/siidte/internal/server/models"
	"github.com/mfuentesc/siidte/internal/server/repositories/repomanager"
)

// CertificateService owns the import/inspect/delete lifecycle of an
// account's digital certificate. The private key only exists in plaintext
// inside Import, between container decode and vault sealing.
type CertificateService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	now         func() time.Time
}

func NewCertificateService(db *sql.DB, rm repomanager.RepositoryManager, log logging.Logger) *CertificateService {
	return &CertificateService{
		db:          db,
		repomanager: rm,
		log:         log,
		now:         time.Now,
	}
}

// Import decodes the container, seals the private key under the password
// and stores the envelope, replacing any previous certificate wholesale.
// The returned envelope carries identity fields only; key material never
// leaves this method in plaintext.
func (s *CertificateService) Import(ctx context.Context, accountID string, container []byte, password string) (*models.CertificateEnvelope, error) {
	identity, err := certx.Import(container, password)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(identity.KeyPEM)

	sealed, err := keyvault.Seal(identity.KeyPEM, password)
	if err != nil {
		return nil, err
	}

	env := &models.CertificateEnvelope{
		AccountID:     accountID,
		Subject:       identity.Subject,
		Issuer:        identity.Issuer,
		ValidFrom:     identity.ValidFrom,
		ValidTo:       identity.ValidTo,
		RUT:           identity.RUT,
		CertPEM:       string(identity.CertPEM),
		KeyCiphertext: sealed.Ciphertext,
		Salt:          sealed.Salt,
		Nonce:         sealed.Nonce,
		IssuedAt:      s.now(),
	}

	if err := s.repomanager.Certificates(s.db).Upsert(ctx, env); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "certificate imported", "account", accountID, "subject", env.Subject)
	return env, nil
}

// Info returns the stored envelope for display. Callers must not expose the
// ciphertext fields outward.
func (s *CertificateService) Info(ctx context.Context, accountID string) (*models.CertificateEnvelope, error) {
	return s.repomanager.Certificates(s.db).GetByAccount(ctx, accountID)
}

// Delete removes the account's certificate.
func (s *CertificateService) Delete(ctx context.Context, accountID string) error {
	if err := s.repomanager.Certificates(s.db).DeleteByAccount(ctx, accountID); err != nil {
		return err
	}
	s.log.Info(ctx, "certificate deleted", "account", accountID)
	return nil
}
