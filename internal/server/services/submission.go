package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sc "github.com/mfuentesc/siidte/internal/server/config"

	"github.com/mfuentesc/siidte/internal/common"
	"github.com/mfuentesc/siidte/internal/dte"
	"github.com/mfuentesc/siidte/internal/keyvault"
	"github.com/mfuentesc/siidte/internal/logging"
	"github.com/mfuentesc/siidte/internal/server/models"
	"github.com/mfuentesc/siidte/internal/server/repositories/repomanager"
	"github.com/mfuentesc/siidte/internal/xmldsig"
)

// Uploader is the slice of the SII client the submission service needs.
type Uploader interface {
	Upload(ctx context.Context, rutSender, rutCompany, token string, signedDTE []byte) (string, error)
}

// SubmissionResult is what a successful Submit reports back.
type SubmissionResult struct {
	InvoiceID   int64
	Estado      string
	AlreadySent bool
	// Response is the authority's raw reception answer; empty when the
	// invoice had already been sent.
	Response string
}

// SubmissionService drives the send flow: build the tax document, sign it
// with the account's unlocked key, upload it, and record the state change.
// The invoice state only ever moves to SENT after the authority accepted
// the upload; any failure before that leaves state untouched.
type SubmissionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	signer      *xmldsig.Signer
	uploader    Uploader
	config      *sc.Config
	log         logging.Logger
	now         func() time.Time
}

func NewSubmissionService(db *sql.DB, rm repomanager.RepositoryManager, signer *xmldsig.Signer,
	uploader Uploader, config *sc.Config, log logging.Logger) *SubmissionService {
	return &SubmissionService{
		db:          db,
		repomanager: rm,
		signer:      signer,
		uploader:    uploader,
		config:      config,
		log:         log,
		now:         time.Now,
	}
}

// Submit sends an invoice to the SII.
//
// Preconditions: the invoice and a certificate must exist, a valid
// unexpired SII token must already be stored (Submit never mints one), and
// the password must open the key vault. A VOID invoice is terminal and
// yields ErrorInvalidState; a SENT invoice returns success without touching
// the authority again.
func (s *SubmissionService) Submit(ctx context.Context, accountID string, invoiceID int64, password string) (*SubmissionResult, error) {
	invoice, err := s.repomanager.Invoices(s.db).GetByID(ctx, accountID, invoiceID)
	if err != nil {
		return nil, err
	}

	switch invoice.Estado {
	case models.EstadoVoid:
		return nil, common.ErrorInvalidState
	case models.EstadoSent:
		return &SubmissionResult{InvoiceID: invoiceID, Estado: models.EstadoSent, AlreadySent: true}, nil
	}

	env, err := s.repomanager.Certificates(s.db).GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	token, err := s.validToken(ctx, accountID)
	if err != nil {
		return nil, err
	}

	keyPEM, err := keyvault.Open(&keyvault.Envelope{
		Ciphertext: env.KeyCiphertext,
		Salt:       env.Salt,
		Nonce:      env.Nonce,
	}, password)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(keyPEM)

	dteXML, err := dte.Build(invoice)
	if err != nil {
		return nil, err
	}

	signed, err := s.signer.Sign(dteXML, keyPEM, []byte(env.CertPEM))
	if err != nil {
		return nil, err
	}

	// Sender is the certificate holder; when the certificate subject has no
	// RUT, the emitter's is used for both roles.
	rutSender := env.RUT
	if rutSender == "" {
		rutSender = invoice.RutEmisor
	}

	response, err := s.uploader.Upload(ctx, rutSender, invoice.RutEmisor, token, signed)
	if err != nil {
		return nil, err
	}

	if err := s.repomanager.Invoices(s.db).UpdateEstado(ctx, accountID, invoiceID, models.EstadoSent); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "invoice sent", "account", accountID, "invoice", invoiceID, "folio", invoice.Folio)

	// Archiving is best-effort: the document is already accepted, so a
	// storage failure must not fail the submission.
	if err := s.archiveSigned(ctx, accountID, invoice, signed); err != nil {
		s.log.Warn(ctx, "archive failed", "account", accountID, "invoice", invoiceID, "error", err.Error())
	}

	return &SubmissionResult{InvoiceID: invoiceID, Estado: models.EstadoSent, Response: response}, nil
}

// validToken loads the stored SII token and checks it against the
// configured TTL. A missing or stale token yields ErrorNoToken; Submit
// never requests a new one on the caller's behalf.
func (s *SubmissionService) validToken(ctx context.Context, accountID string) (string, error) {
	session, err := s.repomanager.AuthSessions(s.db).Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNoToken
		}
		return "", err
	}
	if session.Token == "" {
		return "", common.ErrorNoToken
	}
	if s.now().Sub(session.TokenIssuedAt) > s.config.SIITokenTTL {
		return "", common.ErrorNoToken
	}
	return session.Token, nil
}
