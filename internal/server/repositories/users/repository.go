package users

import (
	"context"

	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	GetByIdentityID(ctx context.Context, identityID string) (*models.User, error)
	Update(ctx context.Context, userID string, patch models.UserPatch, actorID string) (*models.User, error)
	Search(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
}
