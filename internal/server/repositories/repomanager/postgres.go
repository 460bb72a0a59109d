// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mfuentesc/siidte/internal/dbx"
	"github.com/mfuentesc/siidte/internal/server/migrations"
	"github.com/mfuentesc/siidte/internal/server/repositories/authsessions"
	"github.com/mfuentesc/siidte/internal/server/repositories/certificates"
	"github.com/mfuentesc/siidte/internal/server/repositories/invoices"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// Certificates returns a certificates.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Certificates(db dbx.DBTX) certificates.Repository {
	return certificates.NewPostgresRepository(db)
}

// AuthSessions returns an authsessions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) AuthSessions(db dbx.DBTX) authsessions.Repository {
	return authsessions.NewPostgresRepository(db)
}

// Invoices returns an invoices.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Invoices(db dbx.DBTX) invoices.Repository {
	return invoices.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
