package repomanager

import (
	"context"
	"database/sql"

	"github.com/avolkov/authgate/internal/dbx"
	"github.com/avolkov/authgate/internal/server/repositories/refreshtokens"
	"github.com/avolkov/authgate/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so
// a service can run several repositories inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
