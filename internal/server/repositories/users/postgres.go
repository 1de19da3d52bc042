package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

const columns = `user_id, identity_id, idp, username, full_name, first_name, last_name, email, active, created_by, created_at, updated_by, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO "user" (user_id, identity_id, idp, username, full_name, first_name, last_name, email, active, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.UserID, dbx.NullString(user.IdentityID), dbx.NullString(user.IDP), user.Username,
		dbx.NullString(user.FullName), dbx.NullString(user.FirstName), dbx.NullString(user.LastName),
		dbx.NullString(user.Email), user.Active, user.CreatedBy,
	).Scan(&user.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.User, error) {
	return r.getBy(ctx, "user_id", userID)
}

func (r *PostgresRepository) GetByIdentityID(ctx context.Context, identityID string) (*models.User, error) {
	return r.getBy(ctx, "identity_id", identityID)
}

func (r *PostgresRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	query := `SELECT ` + columns + ` FROM "user" WHERE ` + column + ` = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Resource: "user", ID: value}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// Update writes only the fields set in patch and stamps the audit columns.
func (r *PostgresRepository) Update(ctx context.Context, userID string, patch models.UserPatch, actorID string) (*models.User, error) {
	var args dbx.Args
	var set []string

	field := func(column string, v *string) {
		if v != nil {
			set = append(set, column+" = "+args.Add(dbx.NullString(*v)))
		}
	}
	field("idp", patch.IDP)
	if patch.Username != nil {
		set = append(set, "username = "+args.Add(*patch.Username))
	}
	field("full_name", patch.FullName)
	field("first_name", patch.FirstName)
	field("last_name", patch.LastName)
	field("email", patch.Email)
	set = append(set, "updated_by = "+args.Add(actorID), "updated_at = now()")

	query := `UPDATE "user" SET ` + strings.Join(set, ", ") +
		` WHERE user_id = ` + args.Add(userID) + ` RETURNING ` + columns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args.Values()...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &common.NotFoundError{Resource: "user", ID: userID}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) Search(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	var args dbx.Args
	where := []string{"TRUE"}

	if len(filter.UserIDs) > 0 {
		where = append(where, "user_id IN ("+dbx.List(&args, filter.UserIDs)+")")
	}
	if len(filter.IdentityIDs) > 0 {
		where = append(where, "identity_id IN ("+dbx.List(&args, filter.IdentityIDs)+")")
	}
	if filter.IDP != "" {
		where = append(where, "idp = "+args.Add(filter.IDP))
	}
	if filter.Username != "" {
		where = append(where, "username ILIKE "+args.Add("%"+filter.Username+"%"))
	}
	if filter.Email != "" {
		where = append(where, "email ILIKE "+args.Add("%"+filter.Email+"%"))
	}
	if filter.Active != nil {
		where = append(where, "active = "+args.Add(*filter.Active))
	}

	query := `SELECT ` + columns + ` FROM "user" WHERE ` + strings.Join(where, " AND ") + ` ORDER BY username`

	rows, err := r.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	var (
		u                                      models.User
		identityID, idp, fullName, first, last sql.NullString
		email, createdBy, updatedBy            sql.NullString
		updatedAt                              sql.NullTime
	)
	err := s.Scan(&u.UserID, &identityID, &idp, &u.Username, &fullName, &first, &last, &email,
		&u.Active, &createdBy, &u.CreatedAt, &updatedBy, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.IdentityID = identityID.String
	u.IDP = idp.String
	u.FullName = fullName.String
	u.FirstName = first.String
	u.LastName = last.String
	u.Email = email.String
	u.CreatedBy = createdBy.String
	u.UpdatedBy = updatedBy.String
	u.UpdatedAt = updatedAt.Time
	return &u, nil
}
