package certificates

import (
	"context"

	"github.com/mfuentesc/siidte/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, env *models.CertificateEnvelope) error
	GetByAccount(ctx context.Context, accountID string) (*models.CertificateEnvelope, error)
	DeleteByAccount(ctx context.Context, accountID string) error
}
