package identityproviders

import (
	"context"

	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type Repository interface {
	Exists(ctx context.Context, idp string) (bool, error)
	Create(ctx context.Context, p *models.IdentityProvider) error
}
