package invoices

import (
	"context"

	"github.com/mfuentesc/siidte/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, accountID string, invoiceID int64) (*models.Invoice, error)
	UpdateEstado(ctx context.Context, accountID string, invoiceID int64, estado string) error
}
