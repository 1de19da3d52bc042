// Package buckets provides the PostgreSQL repository for the bucket
// registry. Secrets are stored sealed; this package never sees plaintext.
package buckets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

const columns = `bucket_id, bucket_name, bucket, endpoint, key, region, access_key_id, secret_access_key, active, created_by, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, b *models.Bucket) (*models.Bucket, error) {
	query := `
		INSERT INTO bucket (bucket_id, bucket_name, bucket, endpoint, key, region, access_key_id, secret_access_key, active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		b.BucketID, b.BucketName, b.Bucket, b.Endpoint, b.Key, dbx.NullString(b.Region),
		b.AccessKeyID, b.SecretAccessKey, b.Active, b.CreatedBy,
	).Scan(&b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) Get(ctx context.Context, bucketID string) (*models.Bucket, error) {
	query := `SELECT ` + columns + ` FROM bucket WHERE bucket_id = $1`
	b, err := scanBucket(r.db.QueryRowContext(ctx, query, bucketID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Resource: "bucket", ID: bucketID}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

// List returns active buckets, optionally restricted to bucketIDs.
func (r *PostgresRepository) List(ctx context.Context, bucketIDs []string) ([]*models.Bucket, error) {
	var args dbx.Args
	query := `SELECT ` + columns + ` FROM bucket WHERE active = TRUE`
	if len(bucketIDs) > 0 {
		query += ` AND bucket_id IN (` + dbx.List(&args, bucketIDs) + `)`
	}
	query += ` ORDER BY bucket_name`

	rows, err := r.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to select buckets: %w", err)
	}
	defer rows.Close()

	var result []*models.Bucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the registration. Objects and grants scoped to the bucket
// cascade.
func (r *PostgresRepository) Delete(ctx context.Context, bucketID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bucket WHERE bucket_id = $1`, bucketID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return &common.NotFoundError{Resource: "bucket", ID: bucketID}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBucket(s scanner) (*models.Bucket, error) {
	var (
		b                 models.Bucket
		region, createdBy sql.NullString
	)
	err := s.Scan(&b.BucketID, &b.BucketName, &b.Bucket, &b.Endpoint, &b.Key, &region,
		&b.AccessKeyID, &b.SecretAccessKey, &b.Active, &createdBy, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.Region = region.String
	b.CreatedBy = createdBy.String
	return &b, nil
}
