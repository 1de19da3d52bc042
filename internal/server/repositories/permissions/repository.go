package permissions

import (
	"context"

	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type Repository interface {
	Add(ctx context.Context, p *models.Permission) (bool, error)
	Remove(ctx context.Context, scope models.PermissionScope, userIDs []string, codes []models.PermissionCode) (int64, error)
	Search(ctx context.Context, filter models.PermissionFilter) ([]*models.Permission, error)
	Exists(ctx context.Context, userID, objectID string, code models.PermissionCode) (bool, error)
}
