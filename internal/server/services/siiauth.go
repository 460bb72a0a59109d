package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/mfuentesc/siidte/internal/common"
	"github.com/mfuentesc/siidte/internal/dbx"
	"github.com/mfuentesc/siidte/internal/keyvault"
	"github.com/mfuentesc/siidte/internal/logging"
	"github.com/mfuentesc/siidte/internal/server/repositories/repomanager"
)

// seedTTL is how long a seed stays exchangeable after the authority issues
// it. The SII invalidates seeds server-side on roughly this horizon; we
// enforce it locally so a stale seed fails fast with a clear error.
const seedTTL = 5 * time.Minute

// SeedTokenClient is the slice of the SII client the auth service needs.
type SeedTokenClient interface {
	GetSeed(ctx context.Context) (string, error)
	GetToken(ctx context.Context, seed string, keyPEM, certPEM []byte) (string, error)
}

// SIIAuthService runs the challenge/response flow against the SII and
// persists its state per account. Seeds are single-use: the transaction
// that stores a minted token also clears the seed it was exchanged for.
type SIIAuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	client      SeedTokenClient
	log         logging.Logger
	now         func() time.Time

	// mu guards locks; each account gets its own mutex so one account's
	// token exchange cannot block another's.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSIIAuthService(db *sql.DB, rm repomanager.RepositoryManager, client SeedTokenClient, log logging.Logger) *SIIAuthService {
	return &SIIAuthService{
		db:          db,
		repomanager: rm,
		client:      client,
		log:         log,
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *SIIAuthService) accountLock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountID] = l
	}
	return l
}

// RequestSeed obtains a fresh seed from the authority and stores it,
// replacing any previous unconsumed seed.
func (s *SIIAuthService) RequestSeed(ctx context.Context, accountID string) (string, time.Time, error) {
	seed, err := s.client.GetSeed(ctx)
	if err != nil {
		return "", time.Time{}, err
	}

	issuedAt := s.now()
	if err := s.repomanager.AuthSessions(s.db).SetSeed(ctx, accountID, seed, issuedAt); err != nil {
		return "", time.Time{}, err
	}

	s.log.Info(ctx, "seed stored", "account", accountID)
	return seed, issuedAt, nil
}

// RequestToken exchanges the stored seed for a bearer token. The seed must
// exist and be younger than seedTTL; the account password unlocks the
// private key for signing. On success the token is stored and the seed
// cleared in one transaction, so retrying with the same seed is impossible.
func (s *SIIAuthService) RequestToken(ctx context.Context, accountID, password string) (string, time.Time, error) {
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.repomanager.AuthSessions(s.db).Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", time.Time{}, common.ErrorNoSeed
		}
		return "", time.Time{}, err
	}
	if session.Seed == "" {
		return "", time.Time{}, common.ErrorNoSeed
	}
	if s.now().Sub(session.SeedIssuedAt) > seedTTL {
		return "", time.Time{}, common.ErrorSeedExpired
	}

	env, err := s.repomanager.Certificates(s.db).GetByAccount(ctx, accountID)
	if err != nil {
		return "", time.Time{}, err
	}

	keyPEM, err := keyvault.Open(&keyvault.Envelope{
		Ciphertext: env.KeyCiphertext,
		Salt:       env.Salt,
		Nonce:      env.Nonce,
	}, password)
	if err != nil {
		return "", time.Time{}, err
	}
	defer common.WipeByteArray(keyPEM)

	token, err := s.client.GetToken(ctx, session.Seed, keyPEM, []byte(env.CertPEM))
	if err != nil {
		return "", time.Time{}, err
	}

	issuedAt := s.now()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sessions := s.repomanager.AuthSessions(tx)
		if err := sessions.SetToken(ctx, accountID, token, issuedAt); err != nil {
			return err
		}
		return sessions.ClearSeed(ctx, accountID)
	})
	if err != nil {
		return "", time.Time{}, err
	}

	s.log.Info(ctx, "token stored", "account", accountID)
	return token, issuedAt, nil
}
