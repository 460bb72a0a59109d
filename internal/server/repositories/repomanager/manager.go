package repomanager

import (
	"context"
	"database/sql"

	"github.com/mfuentesc/siidte/internal/dbx"
	"github.com/mfuentesc/siidte/internal/server/repositories/authsessions"
	"github.com/mfuentesc/siidte/internal/server/repositories/certificates"
	"github.com/mfuentesc/siidte/internal/server/repositories/invoices"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Certificates(db dbx.DBTX) certificates.Repository
	AuthSessions(db dbx.DBTX) authsessions.Repository
	Invoices(db dbx.DBTX) invoices.Repository
}
