package buckets

import (
	"context"

	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, b *models.Bucket) (*models.Bucket, error)
	Get(ctx context.Context, bucketID string) (*models.Bucket, error)
	List(ctx context.Context, bucketIDs []string) ([]*models.Bucket, error)
	Delete(ctx context.Context, bucketID string) error
}
