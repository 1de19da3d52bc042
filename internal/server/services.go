package server

import (
	"database/sql"

	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server/config"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/objcatalog/internal/server/services"
	"github.com/dmitrijs2005/objcatalog/internal/server/storage"
)

// Services is the assembled service layer over one database pool and one
// object store adapter.
type Services struct {
	Store       *storage.Adapter
	Buckets     *services.BucketService
	Catalog     *services.CatalogService
	Metadata    *services.MetadataService
	Tags        *services.TagService
	Permissions *services.PermissionService
	Users       *services.UserService
}

// NewServices wires the services. The bucket registry is the adapter's
// resolver, so objects in registered buckets reach their own endpoints.
func NewServices(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, factory storage.ClientFactory, logger logging.Logger) *Services {
	buckets := services.NewBucketService(db, m, storage.NewProber(factory), cfg.DefaultBucket(), cfg.BucketSecretPassphrase, logger)
	store := storage.NewAdapter(buckets, factory, cfg.PresignExpiry, logger)
	metadata := services.NewMetadataService(db, m, logger)

	return &Services{
		Store:       store,
		Buckets:     buckets,
		Catalog:     services.NewCatalogService(db, m, store, metadata, logger),
		Metadata:    metadata,
		Tags:        services.NewTagService(db, m, store, logger),
		Permissions: services.NewPermissionService(db, m, logger),
		Users:       services.NewUserService(db, m, []byte(cfg.JWTSecret), logger),
	}
}
