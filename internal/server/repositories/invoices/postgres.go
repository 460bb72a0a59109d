// Package invoices reads invoice data for document building and writes
// submission state back. Invoice creation and editing belong to the
// surrounding CRUD layer, not to this subsystem.
package invoices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mfuentesc/siidte/internal/common"
	"github.com/mfuentesc/siidte/internal/dbx"
	"github.com/mfuentesc/siidte/internal/server/models"
)

// PostgresRepository implements invoice access over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID loads an invoice and its detail lines, scoped to the account.
// Lines come back ordered by line number. Returns common.ErrorNotFound when
// the invoice does not exist or belongs to another account.
func (r *PostgresRepository) GetByID(ctx context.Context, accountID string, invoiceID int64) (*models.Invoice, error) {
	query := `
		SELECT id, account_id, tipo_dte, folio, fecha_emision,
			rut_emisor, razon_social_emisor, giro_emisor, dir_origen, comuna_origen,
			rut_receptor, razon_social_receptor, direccion_receptor, comuna_receptor,
			monto_neto, iva, monto_total, estado
		FROM invoices WHERE id = $1 AND account_id = $2
	`
	var inv models.Invoice
	err := r.db.QueryRowContext(ctx, query, invoiceID, accountID).Scan(
		&inv.ID, &inv.AccountID, &inv.TipoDTE, &inv.Folio, &inv.FechaEmision,
		&inv.RutEmisor, &inv.RazonSocialEmisor, &inv.GiroEmisor, &inv.DirOrigen, &inv.ComunaOrigen,
		&inv.RutReceptor, &inv.RazonSocialReceptor, &inv.DireccionReceptor, &inv.ComunaReceptor,
		&inv.MontoNeto, &inv.IVA, &inv.MontoTotal, &inv.Estado)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	lines, err := r.selectLines(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Detalles = lines
	return &inv, nil
}

func (r *PostgresRepository) selectLines(ctx context.Context, invoiceID int64) ([]models.InvoiceLine, error) {
	query := `
		SELECT descripcion, cantidad, precio_unit, monto_neto
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_no
	`
	rows, err := r.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to select invoice lines: %w", err)
	}
	defer rows.Close()

	var result []models.InvoiceLine
	for rows.Next() {
		var line models.InvoiceLine
		if err := rows.Scan(&line.Descripcion, &line.Cantidad, &line.PrecioUnit, &line.MontoNeto); err != nil {
			return nil, err
		}
		result = append(result, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateEstado writes the invoice state, scoped to the account. Returns
// common.ErrorNotFound when no row matched.
func (r *PostgresRepository) UpdateEstado(ctx context.Context, accountID string, invoiceID int64, estado string) error {
	query := `UPDATE invoices SET estado = $1 WHERE id = $2 AND account_id = $3`
	res, err := r.db.ExecContext(ctx, query, estado, invoiceID, accountID)
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
