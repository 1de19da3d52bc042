package metadata

import (
	"context"

	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type Repository interface {
	FindOrCreate(ctx context.Context, key, value string) (int64, error)
	ListForVersion(ctx context.Context, versionID string) ([]models.VersionMetadata, error)
	ListForVersions(ctx context.Context, versionIDs []string) ([]models.VersionMetadata, error)
	Associate(ctx context.Context, versionID string, metadataIDs []int64, actorID string) error
	Dissociate(ctx context.Context, versionID string, metadataIDs []int64) (int64, error)
	PruneOrphans(ctx context.Context) (int64, error)
}
