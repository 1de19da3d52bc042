// Package permissions provides the PostgreSQL repository for permission
// grants scoped to an object or a bucket.
package permissions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/permissions"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add inserts a grant. It reports false, with no error, when an identical
// (user, scope, code) grant already exists.
func (r *PostgresRepository) Add(ctx context.Context, p *models.Permission) (bool, error) {
	query := `
		INSERT INTO permission (id, user_id, object_id, bucket_id, code, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserID, dbx.NullString(p.ObjectID), dbx.NullString(p.BucketID), string(p.Code), p.CreatedBy)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// Remove deletes grants under scope. Empty userIDs or codes match every
// user or every code respectively.
func (r *PostgresRepository) Remove(ctx context.Context, scope models.PermissionScope, userIDs []string, codes []models.PermissionCode) (int64, error) {
	var args dbx.Args
	var where []string
	if scope.ObjectID != "" {
		where = append(where, "object_id = "+args.Add(scope.ObjectID))
	} else {
		where = append(where, "bucket_id = "+args.Add(scope.BucketID))
	}
	if len(userIDs) > 0 {
		where = append(where, "user_id IN ("+dbx.List(&args, userIDs)+")")
	}
	if len(codes) > 0 {
		where = append(where, "code IN ("+dbx.List(&args, codeStrings(codes))+")")
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM permission WHERE `+strings.Join(where, " AND "), args.Values()...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// Search returns object-scoped grants when filter.ObjectPerms is set and
// bucket-scoped grants otherwise.
func (r *PostgresRepository) Search(ctx context.Context, filter models.PermissionFilter) ([]*models.Permission, error) {
	var args dbx.Args
	var where []string
	if filter.ObjectPerms {
		where = append(where, "object_id IS NOT NULL")
	} else {
		where = append(where, "bucket_id IS NOT NULL")
	}
	if len(filter.UserIDs) > 0 {
		where = append(where, "user_id IN ("+dbx.List(&args, filter.UserIDs)+")")
	}
	if len(filter.ObjectIDs) > 0 {
		where = append(where, "object_id IN ("+dbx.List(&args, filter.ObjectIDs)+")")
	}
	if len(filter.BucketIDs) > 0 {
		where = append(where, "bucket_id IN ("+dbx.List(&args, filter.BucketIDs)+")")
	}
	if len(filter.Codes) > 0 {
		where = append(where, "code IN ("+dbx.List(&args, codeStrings(filter.Codes))+")")
	}

	query := `SELECT id, user_id, object_id, bucket_id, code, created_by, created_at FROM permission WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY user_id, code`

	rows, err := r.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to select permissions: %w", err)
	}
	defer rows.Close()

	var result []*models.Permission
	for rows.Next() {
		var (
			p                  models.Permission
			objectID, bucketID sql.NullString
			code               string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &objectID, &bucketID, &code, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.ObjectID = objectID.String
		p.BucketID = bucketID.String
		p.Code = models.PermissionCode(code)
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Exists is the point form of permissions.HasPermission.
func (r *PostgresRepository) Exists(ctx context.Context, userID, objectID string, code models.PermissionCode) (bool, error) {
	var args dbx.Args
	query := `SELECT EXISTS (SELECT 1 FROM object o WHERE o.id = ` + args.Add(objectID) +
		permissions.Render(permissions.HasPermission(userID, code), &args, "o") + `)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, args.Values()...).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func codeStrings(codes []models.PermissionCode) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}
