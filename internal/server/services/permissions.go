package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/repomanager"
)

type PermissionService struct {
	db          DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewPermissionService(db DB, m repomanager.RepositoryManager, logger logging.Logger) *PermissionService {
	return &PermissionService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "permissions"),
	}
}

func validateScope(op string, scope models.PermissionScope) error {
	if (scope.ObjectID == "") == (scope.BucketID == "") {
		return common.NewValidationError(op, "scope", "exactly one of object id or bucket id is required")
	}
	return nil
}

// AddPermissions grants each (user, code) pair on scope. Grants that already
// exist are skipped. It returns how many rows were inserted.
func (s *PermissionService) AddPermissions(ctx context.Context, tx dbx.DBTX, scope models.PermissionScope, grants []models.Grant, actor models.Principal) (int, error) {
	const op = "add permissions"
	if err := validateScope(op, scope); err != nil {
		return 0, err
	}
	for _, g := range grants {
		if g.UserID == "" {
			return 0, common.NewValidationError(op, "user id", "required")
		}
		if !g.Code.Valid() {
			return 0, common.NewValidationError(op, "code", fmt.Sprintf("unknown permission code %q", g.Code))
		}
	}

	var added int
	err := dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Permissions(tx)
		for _, g := range grants {
			ok, err := repo.Add(ctx, &models.Permission{
				ID:        newID(),
				UserID:    g.UserID,
				ObjectID:  scope.ObjectID,
				BucketID:  scope.BucketID,
				Code:      g.Code,
				CreatedBy: actor.ActorID(),
			})
			if err != nil {
				return fmt.Errorf("error adding permission: %w", err)
			}
			if ok {
				added++
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "add permissions failed", "object_id", scope.ObjectID, "bucket_id", scope.BucketID, "error", err)
		return 0, err
	}
	return added, nil
}

// RemovePermissions revokes grants on scope. An empty userID matches every
// user and an empty code every code; with both empty every grant on the scope
// is removed.
func (s *PermissionService) RemovePermissions(ctx context.Context, tx dbx.DBTX, scope models.PermissionScope, userID string, code models.PermissionCode) (int64, error) {
	const op = "remove permissions"
	if err := validateScope(op, scope); err != nil {
		return 0, err
	}
	if code != "" && !code.Valid() {
		return 0, common.NewValidationError(op, "code", fmt.Sprintf("unknown permission code %q", code))
	}

	var users []string
	if userID != "" {
		users = []string{userID}
	}
	var codes []models.PermissionCode
	if code != "" {
		codes = []models.PermissionCode{code}
	}
	if userID == "" && code == "" {
		s.logger.Warn(ctx, "revoking every grant on scope", "object_id", scope.ObjectID, "bucket_id", scope.BucketID)
	}

	var n int64
	err := dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) (err error) {
		n, err = s.repomanager.Permissions(tx).Remove(ctx, scope, users, codes)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "remove permissions failed", "object_id", scope.ObjectID, "bucket_id", scope.BucketID, "error", err)
		return 0, err
	}
	return n, nil
}

// SearchPermissions lists bucket grants, or with ObjectPerms set the object
// grants of exactly one user.
func (s *PermissionService) SearchPermissions(ctx context.Context, filter models.PermissionFilter) ([]*models.Permission, error) {
	if filter.ObjectPerms && len(filter.UserIDs) != 1 {
		return nil, common.NewValidationError("search permissions", "user id", "object permission search requires exactly one user id")
	}
	return s.repomanager.Permissions(s.db).Search(ctx, filter)
}

// HasPermission reports whether userID holds code on objectID, directly or
// through the object's bucket.
func (s *PermissionService) HasPermission(ctx context.Context, userID, objectID string, code models.PermissionCode) (bool, error) {
	return s.repomanager.Permissions(s.db).Exists(ctx, userID, objectID, code)
}
