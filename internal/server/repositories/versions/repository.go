package versions

import (
	"context"

	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.Version) (*models.Version, error)
	Get(ctx context.Context, id string) (*models.Version, error)
	GetByS3VersionID(ctx context.Context, objectID, s3VersionID string) (*models.Version, error)
	ListByObject(ctx context.Context, objectID string) ([]*models.Version, error)
	Latest(ctx context.Context, objectID string) (*models.Version, error)
	LatestForObjects(ctx context.Context, objectIDs []string) (map[string]*models.Version, error)
	ReplaceContent(ctx context.Context, v *models.Version) (*models.Version, error)
	Delete(ctx context.Context, id string) error
}
