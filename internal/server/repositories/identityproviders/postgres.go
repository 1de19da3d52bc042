// Package identityproviders stores the lookup of known idp codes.
package identityproviders

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Exists(ctx context.Context, idp string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM identity_provider WHERE idp = $1)`, idp).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// Create registers idp. A concurrent registration of the same code is
// absorbed.
func (r *PostgresRepository) Create(ctx context.Context, p *models.IdentityProvider) error {
	query := `
		INSERT INTO identity_provider (idp, display, active, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idp) DO NOTHING
	`
	display := p.Display
	if display == "" {
		display = p.IDP
	}
	if _, err := r.db.ExecContext(ctx, query, p.IDP, display, p.Active, dbx.NullString(p.CreatedBy)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
