// Package metadata provides the PostgreSQL repository for deduplicated
// metadata pairs and their version associations.
package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindOrCreate returns the id of the (key, value) row, inserting it when
// absent. The no-op update on conflict row-locks an existing pair until the
// surrounding transaction ends, so a concurrent prune cannot remove it
// before it is re-joined.
func (r *PostgresRepository) FindOrCreate(ctx context.Context, key, value string) (int64, error) {
	query := `
		INSERT INTO metadata (key, value) VALUES ($1, $2)
		ON CONFLICT (key, value) DO UPDATE SET key = EXCLUDED.key
		RETURNING id
	`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, key, value).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) ListForVersion(ctx context.Context, versionID string) ([]models.VersionMetadata, error) {
	return r.ListForVersions(ctx, []string{versionID})
}

func (r *PostgresRepository) ListForVersions(ctx context.Context, versionIDs []string) ([]models.VersionMetadata, error) {
	if len(versionIDs) == 0 {
		return nil, nil
	}
	var args dbx.Args
	query := `
		SELECT vm.version_id, vm.metadata_id, m.key, m.value, vm.created_by
		FROM version_metadata vm
		JOIN metadata m ON m.id = vm.metadata_id
		WHERE vm.version_id IN (` + dbx.List(&args, versionIDs) + `)
		ORDER BY vm.version_id, m.key, m.value`

	rows, err := r.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to select version metadata: %w", err)
	}
	defer rows.Close()

	var result []models.VersionMetadata
	for rows.Next() {
		var vm models.VersionMetadata
		if err := rows.Scan(&vm.VersionID, &vm.MetadataID, &vm.Key, &vm.Value, &vm.CreatedBy); err != nil {
			return nil, err
		}
		result = append(result, vm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Associate joins metadataIDs to versionID. Existing joins are left as-is.
func (r *PostgresRepository) Associate(ctx context.Context, versionID string, metadataIDs []int64, actorID string) error {
	if len(metadataIDs) == 0 {
		return nil
	}
	var args dbx.Args
	v := args.Add(versionID)
	a := args.Add(actorID)
	values := make([]string, len(metadataIDs))
	for i, id := range metadataIDs {
		values[i] = "(" + v + ", " + args.Add(id) + ", " + a + ")"
	}
	query := `INSERT INTO version_metadata (version_id, metadata_id, created_by) VALUES ` +
		strings.Join(values, ", ") +
		` ON CONFLICT (version_id, metadata_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, args.Values()...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Dissociate(ctx context.Context, versionID string, metadataIDs []int64) (int64, error) {
	if len(metadataIDs) == 0 {
		return 0, nil
	}
	var args dbx.Args
	query := `DELETE FROM version_metadata WHERE version_id = ` + args.Add(versionID) +
		` AND metadata_id IN (` + dbx.List(&args, metadataIDs) + `)`
	res, err := r.db.ExecContext(ctx, query, args.Values()...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// PruneOrphans deletes every metadata row no version references.
func (r *PostgresRepository) PruneOrphans(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM metadata m
		WHERE NOT EXISTS (SELECT 1 FROM version_metadata vm WHERE vm.metadata_id = m.id)
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
