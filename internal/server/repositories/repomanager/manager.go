package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/buckets"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/identityproviders"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/metadata"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/objects"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/users"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/versions"
)

// RepositoryManager vends repositories bound to a handle. Passing a *sql.Tx
// makes every repository obtained from it share that unit of work.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Objects(db dbx.DBTX) objects.Repository
	Versions(db dbx.DBTX) versions.Repository
	Metadata(db dbx.DBTX) metadata.Repository
	Permissions(db dbx.DBTX) permissions.Repository
	Users(db dbx.DBTX) users.Repository
	IdentityProviders(db dbx.DBTX) identityproviders.Repository
	Buckets(db dbx.DBTX) buckets.Repository
}
