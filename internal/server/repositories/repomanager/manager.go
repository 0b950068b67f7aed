package repomanager

import (
	"context"
	"database/sql"

	"github.com/car2chain/inspections/internal/dbx"
	"github.com/car2chain/inspections/internal/server/repositories/principals"
	"github.com/car2chain/inspections/internal/server/repositories/reports"
	"github.com/car2chain/inspections/internal/server/repositories/sessions"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same repository code on a plain connection or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Principals(db dbx.DBTX) principals.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Reports(db dbx.DBTX) reports.Repository
}
