package objects

import (
	"context"

	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/permissions"
)

type Repository interface {
	Create(ctx context.Context, obj *models.Object) (*models.Object, error)
	Get(ctx context.Context, id string) (*models.Object, error)
	GetByPath(ctx context.Context, bucketID, path string) (*models.Object, error)
	Search(ctx context.Context, filter models.ObjectFilter, restrict *permissions.Predicate) ([]*models.Object, error)
	Allowed(ctx context.Context, id string, restrict *permissions.Predicate) (bool, error)
	SetPublic(ctx context.Context, id string, public bool, actorID string) (*models.Object, error)
	SetActive(ctx context.Context, id string, active bool, actorID string) error
}
