// Package services implements the catalog operations on top of the
// repositories and the storage adapter. Every mutating operation accepts an
// optional open transaction (dbx.DBTX); when it is nil the operation opens
// and commits its own.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/permissions"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/objcatalog/internal/server/storage"
	"github.com/google/uuid"
)

var newID = uuid.NewString

// DB is the connection pool services run against. *sql.DB satisfies it.
type DB interface {
	dbx.DBTX
	dbx.Beginner
}

// ObjectStore is the part of storage.Adapter the catalog needs.
type ObjectStore interface {
	PutObject(ctx context.Context, in storage.PutObjectInput) (*storage.ObjectDescriptor, error)
	Upload(ctx context.Context, in storage.UploadInput) (*storage.UploadResult, error)
	CopyObject(ctx context.Context, in storage.CopyObjectInput) (*storage.ObjectDescriptor, error)
	ReadObject(ctx context.Context, bucketID, key, versionID string) (*storage.ReadObjectOutput, error)
	HeadObject(ctx context.Context, bucketID, key, versionID string) (*storage.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketID, prefix string) ([]storage.ObjectInfo, error)
	DeleteObject(ctx context.Context, bucketID, key, versionID string) (*storage.DeleteResult, error)
	ListObjectVersions(ctx context.Context, bucketID, key string) ([]storage.VersionInfo, error)
	GetBucketVersioning(ctx context.Context, bucketID string) (bool, error)
	GetObjectTagging(ctx context.Context, bucketID, key, versionID string) ([]models.Tag, error)
	PutObjectTagging(ctx context.Context, bucketID, key, versionID string, tags []models.Tag) error
	DeleteObjectTagging(ctx context.Context, bucketID, key, versionID string) error
	PresignURL(ctx context.Context, in storage.PresignInput) (string, error)
}

var _ ObjectStore = (*storage.Adapter)(nil)

// handle is the caller's transaction when there is one, otherwise the pool.
// Reads that precede writes of the same unit of work go through it so they
// see rows the caller has not committed yet.
func handle(db DB, tx dbx.DBTX) dbx.DBTX {
	if tx != nil {
		return tx
	}
	return db
}

func forbidden(op, objectID string, code models.PermissionCode) error {
	return fmt.Errorf("%s: %w: %s on object %s", op, common.ErrorForbidden, code, objectID)
}

// authorize loads an active object and checks that p holds code on it.
// Soft-deleted objects are reported as not found.
func authorize(ctx context.Context, repos repomanager.RepositoryManager, db dbx.DBTX, op, objectID string, p models.Principal, code models.PermissionCode) (*models.Object, error) {
	repo := repos.Objects(db)
	obj, err := repo.Get(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if !obj.Active {
		return nil, &common.NotFoundError{Resource: "object", ID: objectID}
	}
	ok, err := repo.Allowed(ctx, objectID, permissions.ForPrincipal(p, code))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, forbidden(op, objectID, code)
	}
	return obj, nil
}

// storageVersion maps a catalog version id to the store's version id. An
// empty id targets the latest version.
func storageVersion(ctx context.Context, repos repomanager.RepositoryManager, db dbx.DBTX, obj *models.Object, versionID string) (string, error) {
	if versionID == "" {
		return "", nil
	}
	v, err := repos.Versions(db).Get(ctx, versionID)
	if err != nil {
		return "", err
	}
	if v.ObjectID != obj.ID {
		return "", &common.NotFoundError{Resource: "version", ID: versionID}
	}
	return v.S3VersionID, nil
}

func grantAll(ctx context.Context, repos repomanager.RepositoryManager, tx dbx.DBTX, scope models.PermissionScope, userID, actorID string) error {
	repo := repos.Permissions(tx)
	for _, code := range models.AllPermissionCodes {
		_, err := repo.Add(ctx, &models.Permission{
			ID:        newID(),
			UserID:    userID,
			ObjectID:  scope.ObjectID,
			BucketID:  scope.BucketID,
			Code:      code,
			CreatedBy: actorID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
