package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pdfsigner/internal/dbx"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/documents"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/signatures"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Documents(db dbx.DBTX) documents.Repository
	Signatures(db dbx.DBTX) signatures.Repository
	AuditLog(db dbx.DBTX) auditlog.Repository
}
