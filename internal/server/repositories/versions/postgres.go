// Package versions provides the PostgreSQL repository for object versions,
// including current-version resolution.
package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

const columns = `v.id, v.seq, v.object_id, v.s3_version_id, v.mime_type, v.original_name, v.etag, v.delete_marker, v.created_by, v.created_at, v.updated_by, v.updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, v *models.Version) (*models.Version, error) {
	query := `
		INSERT INTO version (id, object_id, s3_version_id, mime_type, original_name, etag, delete_marker, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
		RETURNING seq, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		v.ID, v.ObjectID, dbx.NullString(v.S3VersionID), dbx.NullString(v.MimeType),
		dbx.NullString(v.OriginalName), dbx.NullString(v.ETag), v.DeleteMarker, v.CreatedBy, dbx.NullTime(v.CreatedAt),
	).Scan(&v.Seq, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Version, error) {
	query := `SELECT ` + columns + ` FROM version v WHERE v.id = $1`
	return r.one(ctx, "version", id, query, id)
}

func (r *PostgresRepository) GetByS3VersionID(ctx context.Context, objectID, s3VersionID string) (*models.Version, error) {
	query := `SELECT ` + columns + ` FROM version v WHERE v.object_id = $1 AND v.s3_version_id = $2`
	return r.one(ctx, "version", s3VersionID, query, objectID, s3VersionID)
}

// ListByObject returns every version of an object, delete markers included,
// newest first.
func (r *PostgresRepository) ListByObject(ctx context.Context, objectID string) ([]*models.Version, error) {
	query := `SELECT ` + columns + ` FROM version v WHERE v.object_id = $1 ORDER BY v.created_at DESC, v.seq DESC`
	return r.many(ctx, query, objectID)
}

// Latest resolves the current version: the newest non-delete-marker row,
// ties on created_at broken by insertion order.
func (r *PostgresRepository) Latest(ctx context.Context, objectID string) (*models.Version, error) {
	query := `
		SELECT ` + columns + ` FROM version v
		WHERE v.object_id = $1 AND v.delete_marker = FALSE
		ORDER BY v.created_at DESC, v.seq DESC
		LIMIT 1`
	return r.one(ctx, "current version of object", objectID, query, objectID)
}

// LatestForObjects resolves current versions for many objects in one query.
// Objects without a content version are absent from the map.
func (r *PostgresRepository) LatestForObjects(ctx context.Context, objectIDs []string) (map[string]*models.Version, error) {
	result := make(map[string]*models.Version, len(objectIDs))
	if len(objectIDs) == 0 {
		return result, nil
	}

	var args dbx.Args
	query := `
		SELECT DISTINCT ON (v.object_id) ` + columns + ` FROM version v
		WHERE v.object_id IN (` + dbx.List(&args, objectIDs) + `) AND v.delete_marker = FALSE
		ORDER BY v.object_id, v.created_at DESC, v.seq DESC`

	list, err := r.many(ctx, query, args.Values()...)
	if err != nil {
		return nil, err
	}
	for _, v := range list {
		result[v.ObjectID] = v
	}
	return result, nil
}

// ReplaceContent overwrites the single content version of an object in a
// non-versioned bucket, keeping its id. It is a NotFoundError when the
// object has no content version yet.
func (r *PostgresRepository) ReplaceContent(ctx context.Context, v *models.Version) (*models.Version, error) {
	query := `
		UPDATE version v SET
			s3_version_id = $2, mime_type = $3, original_name = $4, etag = $5,
			updated_by = $6, updated_at = now()
		WHERE v.id = (
			SELECT id FROM version
			WHERE object_id = $1 AND delete_marker = FALSE
			ORDER BY created_at DESC, seq DESC
			LIMIT 1
		)
		RETURNING ` + columns
	row := r.db.QueryRowContext(ctx, query,
		v.ObjectID, dbx.NullString(v.S3VersionID), dbx.NullString(v.MimeType),
		dbx.NullString(v.OriginalName), dbx.NullString(v.ETag), v.UpdatedBy)
	out, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Resource: "content version of object", ID: v.ObjectID}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM version WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return &common.NotFoundError{Resource: "version", ID: id}
	}
	return nil
}

func (r *PostgresRepository) one(ctx context.Context, resource, id, query string, args ...any) (*models.Version, error) {
	v, err := scanVersion(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Resource: resource, ID: id}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) many(ctx context.Context, query string, args ...any) ([]*models.Version, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	var result []*models.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(s scanner) (*models.Version, error) {
	var (
		v                             models.Version
		s3VersionID, mimeType         sql.NullString
		originalName, etag, updatedBy sql.NullString
		updatedAt                     sql.NullTime
	)
	if err := s.Scan(&v.ID, &v.Seq, &v.ObjectID, &s3VersionID, &mimeType, &originalName, &etag,
		&v.DeleteMarker, &v.CreatedBy, &v.CreatedAt, &updatedBy, &updatedAt); err != nil {
		return nil, err
	}
	v.S3VersionID = s3VersionID.String
	v.MimeType = mimeType.String
	v.OriginalName = originalName.String
	v.ETag = etag.String
	v.UpdatedBy = updatedBy.String
	v.UpdatedAt = updatedAt.Time
	return &v, nil
}
