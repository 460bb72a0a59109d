package authsessions

import (
	"context"
	"time"

	"github.com/mfuentesc/siidte/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, accountID string) (*models.AuthSession, error)
	SetSeed(ctx context.Context, accountID, seed string, issuedAt time.Time) error
	SetToken(ctx context.Context, accountID, token string, issuedAt time.Time) error
	ClearSeed(ctx context.Context, accountID string) error
}
