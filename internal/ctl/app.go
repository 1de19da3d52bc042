// Package ctl implements catalogctl, the operator CLI of the catalog. Every
// command runs as the system principal against the configured database.
package ctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server"
	"github.com/dmitrijs2005/objcatalog/internal/server/config"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/objcatalog/internal/server/services"
	"github.com/dmitrijs2005/objcatalog/internal/server/storage"
)

type bucketRegistry interface {
	CreateBucket(ctx context.Context, tx dbx.DBTX, req models.CreateBucketRequest, p models.Principal) (*models.Bucket, error)
	ListBuckets(ctx context.Context, p models.Principal) ([]*models.Bucket, error)
	DeleteBucket(ctx context.Context, tx dbx.DBTX, bucketID string, p models.Principal) error
}

type permissionGranter interface {
	AddPermissions(ctx context.Context, tx dbx.DBTX, scope models.PermissionScope, grants []models.Grant, actor models.Principal) (int, error)
}

type catalogMaintainer interface {
	SyncVersions(ctx context.Context, tx dbx.DBTX, objectID string, p models.Principal) (int, error)
	ImportObjects(ctx context.Context, tx dbx.DBTX, bucketID, prefix string, p models.Principal) (int, error)
}

type metadataPruner interface {
	PruneOrphanedMetadata(ctx context.Context, tx dbx.DBTX) (int64, error)
}

// ErrUsage reports an unknown command or missing arguments.
var ErrUsage = errors.New("usage error")

type App struct {
	out      io.Writer
	reader   *bufio.Reader
	migrate  func(context.Context) error
	buckets  bucketRegistry
	perms    permissionGranter
	catalog  catalogMaintainer
	metadata metadataPruner
	closer   io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stderr, c.LogLevel)

	db, err := repomanager.Open(ctx, c.DatabaseDSN, c.DBMaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	s := server.NewServices(db, m, c, storage.AWSClientFactory{}, logger)

	return &App{
		out:      os.Stdout,
		reader:   bufio.NewReader(os.Stdin),
		migrate:  func(ctx context.Context) error { return m.RunMigrations(ctx, db) },
		buckets:  s.Buckets,
		perms:    s.Permissions,
		catalog:  s.Catalog,
		metadata: s.Metadata,
		closer:   db,
	}, nil
}

const usage = `usage: catalogctl [config flags] <command> [flags]

commands:
  migrate                                   apply database migrations
  bucket-add [-name -bucket -endpoint -key -region -access-key]
                                            register a bucket (secret is prompted)
  bucket-list                               list registered buckets
  bucket-delete -id ID                      remove a bucket and its objects
  grant (-object ID | -bucket-id ID) -user ID -code READ[,UPDATE...]
  sync-versions -object ID                  import storage version history
  import [-bucket-id ID] [-prefix P]        record stored keys missing from the catalog
  prune-metadata                            delete orphaned metadata rows`

// Run dispatches args (without the program name) to a command.
func (a *App) Run(ctx context.Context, args []string) error {
	if a.closer != nil {
		defer func() { _ = a.closer.Close() }()
	}

	cmd, rest := splitCommand(args)
	switch cmd {
	case "migrate":
		return a.Migrate(ctx)
	case "bucket-add":
		return a.BucketAdd(ctx, rest)
	case "bucket-list":
		return a.BucketList(ctx)
	case "bucket-delete":
		return a.BucketDelete(ctx, rest)
	case "grant":
		return a.Grant(ctx, rest)
	case "sync-versions":
		return a.SyncVersions(ctx, rest)
	case "import":
		return a.Import(ctx, rest)
	case "prune-metadata":
		return a.PruneMetadata(ctx)
	case "", "help":
		fmt.Fprintln(a.out, usage)
		if cmd == "" {
			return ErrUsage
		}
		return nil
	default:
		fmt.Fprintln(a.out, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

var (
	_ bucketRegistry    = (*services.BucketService)(nil)
	_ permissionGranter = (*services.PermissionService)(nil)
	_ catalogMaintainer = (*services.CatalogService)(nil)
	_ metadataPruner    = (*services.MetadataService)(nil)
)
