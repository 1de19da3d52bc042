// Package objects provides the PostgreSQL repository for catalog objects.
package objects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/permissions"
)

const columns = `o.id, o.bucket_id, o.path, o.name, o.public, o.active, o.created_by, o.created_at, o.updated_by, o.updated_at`

// PostgresRepository implements object storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, obj *models.Object) (*models.Object, error) {
	query := `
		INSERT INTO object (id, bucket_id, path, name, public, active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		obj.ID, dbx.NullString(obj.BucketID), obj.Path, dbx.NullString(obj.Name), obj.Public, obj.Active, obj.CreatedBy,
	).Scan(&obj.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return obj, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Object, error) {
	query := `SELECT ` + columns + ` FROM object o WHERE o.id = $1`
	obj, err := scanObject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Resource: "object", ID: id}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return obj, nil
}

// GetByPath returns the active object at path in bucketID ("" is the default
// bucket).
func (r *PostgresRepository) GetByPath(ctx context.Context, bucketID, path string) (*models.Object, error) {
	query := `SELECT ` + columns + ` FROM object o
		WHERE o.bucket_id IS NOT DISTINCT FROM $1 AND o.path = $2 AND o.active`
	obj, err := scanObject(r.db.QueryRowContext(ctx, query, dbx.NullString(bucketID), path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Resource: "object", ID: path}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return obj, nil
}

// Search returns objects matching filter that pass restrict. The predicate is
// part of the WHERE clause, so pagination applies to permitted rows only.
func (r *PostgresRepository) Search(ctx context.Context, filter models.ObjectFilter, restrict *permissions.Predicate) ([]*models.Object, error) {
	var args dbx.Args
	var where []string

	if len(filter.IDs) > 0 {
		where = append(where, "o.id IN ("+dbx.List(&args, filter.IDs)+")")
	}
	if len(filter.BucketIDs) > 0 {
		where = append(where, "o.bucket_id IN ("+dbx.List(&args, filter.BucketIDs)+")")
	}
	if filter.Path != "" {
		where = append(where, "o.path ILIKE "+args.Add("%"+filter.Path+"%"))
	}
	if filter.Public != nil {
		where = append(where, "o.public = "+args.Add(*filter.Public))
	}
	active := true
	if filter.Active != nil {
		active = *filter.Active
	}
	where = append(where, "o.active = "+args.Add(active))

	query := `SELECT ` + columns + ` FROM object o WHERE ` + strings.Join(where, " AND ")
	query += permissions.Render(restrict, &args, "o")
	query += ` ORDER BY o.created_at DESC, o.id`
	if filter.Limit > 0 {
		query += ` LIMIT ` + args.Add(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + args.Add(filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to select objects: %w", err)
	}
	defer rows.Close()

	var result []*models.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Allowed reports whether object id exists and passes restrict.
func (r *PostgresRepository) Allowed(ctx context.Context, id string, restrict *permissions.Predicate) (bool, error) {
	var args dbx.Args
	query := `SELECT EXISTS (SELECT 1 FROM object o WHERE o.id = ` + args.Add(id)
	query += permissions.Render(restrict, &args, "o") + `)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, args.Values()...).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) SetPublic(ctx context.Context, id string, public bool, actorID string) (*models.Object, error) {
	query := `
		UPDATE object o SET public = $2, updated_by = $3, updated_at = now()
		WHERE o.id = $1
		RETURNING ` + columns
	obj, err := scanObject(r.db.QueryRowContext(ctx, query, id, public, actorID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Resource: "object", ID: id}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return obj, nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool, actorID string) error {
	query := `UPDATE object SET active = $2, updated_by = $3, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, actorID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return &common.NotFoundError{Resource: "object", ID: id}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObject(s scanner) (*models.Object, error) {
	var (
		o              models.Object
		bucketID, name sql.NullString
		updatedBy      sql.NullString
		updatedAt      sql.NullTime
	)
	if err := s.Scan(&o.ID, &bucketID, &o.Path, &name, &o.Public, &o.Active,
		&o.CreatedBy, &o.CreatedAt, &updatedBy, &updatedAt); err != nil {
		return nil, err
	}
	o.BucketID = bucketID.String
	o.Name = name.String
	o.UpdatedBy = updatedBy.String
	o.UpdatedAt = updatedAt.Time
	return &o, nil
}
