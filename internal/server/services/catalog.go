package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/permissions"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/objcatalog/internal/server/storage"
)

// CatalogService manages objects and their versions.
type CatalogService struct {
	db          DB
	repomanager repomanager.RepositoryManager
	store       ObjectStore
	metadata    *MetadataService
	logger      logging.Logger
}

func NewCatalogService(db DB, m repomanager.RepositoryManager, store ObjectStore, metadata *MetadataService, logger logging.Logger) *CatalogService {
	return &CatalogService{
		db:          db,
		repomanager: m,
		store:       store,
		metadata:    metadata,
		logger:      logger.With("module", "catalog"),
	}
}

// CreateObject allocates an object and its initial version in one unit of
// work. The creator is granted every permission code on the new object.
// Metadata, when non-nil, is associated inside the same transaction.
func (s *CatalogService) CreateObject(ctx context.Context, tx dbx.DBTX, req models.CreateObjectRequest, p models.Principal) (*models.ObjectWithVersion, error) {
	const op = "create object"
	if req.Path == "" {
		return nil, common.NewValidationError(op, "path", "required")
	}
	if req.MimeType == "" {
		return nil, common.NewValidationError(op, "mime type", "required")
	}

	var out *models.ObjectWithVersion
	err := dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) (err error) {
		if err := s.canCreateIn(ctx, tx, op, req.BucketID, p); err != nil {
			return err
		}
		out, err = s.insertObject(ctx, tx, req, p)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "create object failed", "path", req.Path, "bucket_id", req.BucketID, "error", err)
		return nil, err
	}
	s.logger.Info(ctx, "object created", "object_id", out.Object.ID, "bucket_id", req.BucketID)
	return out, nil
}

// canCreateIn checks that p may add objects to a bucket. Any authenticated
// principal may use the default bucket; a registered bucket needs a CREATE
// grant on it.
func (s *CatalogService) canCreateIn(ctx context.Context, db dbx.DBTX, op, bucketID string, p models.Principal) error {
	if p.Anonymous {
		return fmt.Errorf("%s: %w", op, common.ErrorUnauthorized)
	}
	if bucketID == "" || p.System {
		return nil
	}
	ok, err := s.holdsBucketGrant(ctx, db, p.UserID, bucketID, models.PermCreate)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w: CREATE on bucket %s", op, common.ErrorForbidden, bucketID)
	}
	return nil
}

func (s *CatalogService) insertObject(ctx context.Context, tx dbx.DBTX, req models.CreateObjectRequest, p models.Principal) (*models.ObjectWithVersion, error) {
	name := req.Name
	if name == "" {
		name = req.Path[strings.LastIndex(req.Path, "/")+1:]
	}
	obj, err := s.repomanager.Objects(tx).Create(ctx, &models.Object{
		ID:        newID(),
		BucketID:  req.BucketID,
		Path:      req.Path,
		Name:      name,
		Public:    req.Public,
		Active:    true,
		CreatedBy: p.ActorID(),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating object: %w", err)
	}
	v, err := s.repomanager.Versions(tx).Create(ctx, &models.Version{
		ID:           newID(),
		ObjectID:     obj.ID,
		S3VersionID:  req.S3VersionID,
		MimeType:     req.MimeType,
		OriginalName: req.OriginalName,
		ETag:         req.ETag,
		CreatedBy:    p.ActorID(),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating version: %w", err)
	}
	if !p.System {
		if err := grantAll(ctx, s.repomanager, tx, models.PermissionScope{ObjectID: obj.ID}, p.UserID, p.ActorID()); err != nil {
			return nil, fmt.Errorf("error granting owner permissions: %w", err)
		}
	}

	out := &models.ObjectWithVersion{Object: obj, Version: v}
	if req.Metadata != nil {
		if err := s.metadata.AssociateMetadata(ctx, tx, v.ID, req.Metadata, p.ActorID()); err != nil {
			return nil, err
		}
		md, err := s.repomanager.Metadata(tx).ListForVersion(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		out.Metadata = flatten(md)
	}
	return out, nil
}

func (s *CatalogService) holdsBucketGrant(ctx context.Context, db dbx.DBTX, userID, bucketID string, code models.PermissionCode) (bool, error) {
	found, err := s.repomanager.Permissions(db).Search(ctx, models.PermissionFilter{
		UserIDs:   []string{userID},
		BucketIDs: []string{bucketID},
		Codes:     []models.PermissionCode{code},
	})
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// ReadObject returns an object readable by p, with its current version and
// that version's metadata.
func (s *CatalogService) ReadObject(ctx context.Context, objectID string, p models.Principal) (*models.ObjectWithVersion, error) {
	obj, err := authorize(ctx, s.repomanager, s.db, "read object", objectID, p, models.PermRead)
	if err != nil {
		return nil, err
	}
	list, err := s.withVersions(ctx, []*models.Object{obj})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

// SearchObjects lists objects matching filter that p may read. The
// permission predicate is part of the query, so Limit and Offset page over
// readable rows only.
func (s *CatalogService) SearchObjects(ctx context.Context, filter models.ObjectFilter, p models.Principal) ([]*models.ObjectWithVersion, error) {
	objs, err := s.repomanager.Objects(s.db).Search(ctx, filter, permissions.ForPrincipal(p, models.PermRead))
	if err != nil {
		return nil, err
	}
	return s.withVersions(ctx, objs)
}

// withVersions attaches current versions and their metadata with one query
// per step, joined in memory by object id and version id.
func (s *CatalogService) withVersions(ctx context.Context, objs []*models.Object) ([]*models.ObjectWithVersion, error) {
	out := make([]*models.ObjectWithVersion, len(objs))
	if len(objs) == 0 {
		return out, nil
	}
	ids := make([]string, len(objs))
	for i, o := range objs {
		ids[i] = o.ID
	}
	current, err := s.repomanager.Versions(s.db).LatestForObjects(ctx, ids)
	if err != nil {
		return nil, err
	}

	var versionIDs []string
	for _, v := range current {
		versionIDs = append(versionIDs, v.ID)
	}
	md, err := s.metadata.FetchMetadata(ctx, versionIDs)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string][]models.Metadata)
	for _, m := range md {
		byVersion[m.VersionID] = append(byVersion[m.VersionID], models.Metadata{ID: m.MetadataID, Key: m.Key, Value: m.Value})
	}

	for i, o := range objs {
		row := &models.ObjectWithVersion{Object: o, Version: current[o.ID]}
		if row.Version != nil {
			row.Metadata = byVersion[row.Version.ID]
		}
		out[i] = row
	}
	return out, nil
}

// CurrentVersion resolves the newest version of an object that is not a
// delete marker.
func (s *CatalogService) CurrentVersion(ctx context.Context, objectID string) (*models.Version, error) {
	return s.repomanager.Versions(s.db).Latest(ctx, objectID)
}

// GetBucketVersioning reports whether versioning is enabled on a bucket
// (empty id: the default bucket).
func (s *CatalogService) GetBucketVersioning(ctx context.Context, bucketID string) (bool, error) {
	return s.store.GetBucketVersioning(ctx, bucketID)
}

// ListObjectVersion returns the version history, newest first. On a
// versioning bucket the store's list is authoritative and each entry is
// matched to its catalog row by storage version id; entries the catalog has
// never seen come back with an empty ID. Otherwise the catalog rows are
// returned.
func (s *CatalogService) ListObjectVersion(ctx context.Context, objectID string, p models.Principal) ([]*models.Version, error) {
	obj, err := authorize(ctx, s.repomanager, s.db, "list versions", objectID, p, models.PermRead)
	if err != nil {
		return nil, err
	}
	versioned, err := s.store.GetBucketVersioning(ctx, obj.BucketID)
	if err != nil {
		return nil, err
	}
	repo := s.repomanager.Versions(s.db)
	if !versioned {
		return repo.ListByObject(ctx, objectID)
	}

	infos, err := s.store.ListObjectVersions(ctx, obj.BucketID, obj.Path)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Version, 0, len(infos))
	for _, info := range infos {
		v, err := repo.GetByS3VersionID(ctx, objectID, info.VersionID)
		switch {
		case err == nil:
		case isNotFound(err):
			v = &models.Version{
				ObjectID:     objectID,
				S3VersionID:  info.VersionID,
				ETag:         info.ETag,
				DeleteMarker: info.DeleteMarker,
				CreatedAt:    info.LastModified,
			}
		default:
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// CreateVersion records new content for an object. On a bucket without
// versioning the single content version is updated in place; otherwise a
// version is appended. Metadata, when non-nil, replaces the version's set.
func (s *CatalogService) CreateVersion(ctx context.Context, tx dbx.DBTX, objectID string, req models.CreateVersionRequest, p models.Principal) (*models.Version, error) {
	if req.MimeType == "" {
		return nil, common.NewValidationError("create version", "mime type", "required")
	}
	obj, err := authorize(ctx, s.repomanager, handle(s.db, tx), "create version", objectID, p, models.PermUpdate)
	if err != nil {
		return nil, err
	}
	versioned, err := s.store.GetBucketVersioning(ctx, obj.BucketID)
	if err != nil {
		return nil, err
	}
	return s.createVersion(ctx, tx, obj, versioned, req, p)
}

func (s *CatalogService) createVersion(ctx context.Context, tx dbx.DBTX, obj *models.Object, versioned bool, req models.CreateVersionRequest, p models.Principal) (*models.Version, error) {
	var out *models.Version
	err := dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Versions(tx)
		v := &models.Version{
			ID:           newID(),
			ObjectID:     obj.ID,
			S3VersionID:  req.S3VersionID,
			MimeType:     req.MimeType,
			OriginalName: req.OriginalName,
			ETag:         req.ETag,
			CreatedBy:    p.ActorID(),
			UpdatedBy:    p.ActorID(),
		}

		var err error
		if versioned {
			out, err = repo.Create(ctx, v)
		} else {
			out, err = repo.ReplaceContent(ctx, v)
			if isNotFound(err) {
				out, err = repo.Create(ctx, v)
			}
		}
		if err != nil {
			return fmt.Errorf("error writing version: %w", err)
		}

		if req.Metadata != nil {
			return s.metadata.AssociateMetadata(ctx, tx, out.ID, req.Metadata, p.ActorID())
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "create version failed", "object_id", obj.ID, "error", err)
		return nil, err
	}
	return out, nil
}

// UploadVersion writes content to the object's key and records the
// resulting version. When the store kept the content but could not apply the
// tags, the version is still recorded and returned together with the
// *common.PartialUploadError.
func (s *CatalogService) UploadVersion(ctx context.Context, tx dbx.DBTX, objectID string, req models.UploadRequest, p models.Principal) (*models.Version, error) {
	if req.Body == nil {
		return nil, common.NewValidationError("upload", "body", "required")
	}
	if req.ContentType == "" {
		return nil, common.NewValidationError("upload", "content type", "required")
	}
	if len(req.Tags) > storage.MaxTags {
		return nil, common.NewValidationError("upload", "tags", fmt.Sprintf("at most %d tags are allowed", storage.MaxTags))
	}
	obj, err := authorize(ctx, s.repomanager, handle(s.db, tx), "upload", objectID, p, models.PermUpdate)
	if err != nil {
		return nil, err
	}
	versioned, err := s.store.GetBucketVersioning(ctx, obj.BucketID)
	if err != nil {
		return nil, err
	}

	put := storage.PutObjectInput{
		BucketID:      obj.BucketID,
		Key:           obj.Path,
		Body:          req.Body,
		ContentLength: req.ContentLength,
		ContentType:   req.ContentType,
	}
	var (
		res       *storage.ObjectDescriptor
		uploadErr error
	)
	if len(req.Tags) == 0 {
		res, uploadErr = s.store.PutObject(ctx, put)
	} else {
		var up *storage.UploadResult
		up, uploadErr = s.store.Upload(ctx, storage.UploadInput{PutObjectInput: put, Tags: req.Tags})
		if up != nil {
			res = &up.ObjectDescriptor
		}
	}
	if res == nil {
		return nil, uploadErr
	}

	v, err := s.createVersion(ctx, tx, obj, versioned, models.CreateVersionRequest{
		S3VersionID:  res.VersionID,
		MimeType:     req.ContentType,
		OriginalName: req.OriginalName,
		ETag:         res.ETag,
		Metadata:     req.Metadata,
	}, p)
	if err != nil {
		return nil, err
	}
	return v, uploadErr
}

// ReadContent opens the stored content of a version (empty versionID: the
// current one). The caller closes Body.
func (s *CatalogService) ReadContent(ctx context.Context, objectID, versionID string, p models.Principal) (*storage.ReadObjectOutput, error) {
	obj, err := authorize(ctx, s.repomanager, s.db, "read content", objectID, p, models.PermRead)
	if err != nil {
		return nil, err
	}
	s3Version, err := storageVersion(ctx, s.repomanager, s.db, obj, versionID)
	if err != nil {
		return nil, err
	}
	return s.store.ReadObject(ctx, obj.BucketID, obj.Path, s3Version)
}

// sourceVersion resolves the version a copy reads from: versionID when set,
// otherwise the current version. Delete markers have no content to copy.
func (s *CatalogService) sourceVersion(ctx context.Context, db dbx.DBTX, op string, obj *models.Object, versionID string) (*models.Version, []models.Metadata, error) {
	repo := s.repomanager.Versions(db)
	var (
		v   *models.Version
		err error
	)
	if versionID == "" {
		v, err = repo.Latest(ctx, obj.ID)
	} else {
		v, err = repo.Get(ctx, versionID)
		if err == nil && v.ObjectID != obj.ID {
			err = &common.NotFoundError{Resource: "version", ID: versionID}
		}
	}
	if err != nil {
		return nil, nil, err
	}
	if v.DeleteMarker {
		return nil, nil, common.NewValidationError(op, "version id", "a delete marker has no content")
	}
	md, err := s.repomanager.Metadata(db).ListForVersion(ctx, v.ID)
	if err != nil {
		return nil, nil, err
	}
	return v, flatten(md), nil
}

// CopyObject copies a version of an object to req.Path in the same bucket
// and records the copy as a new object owned by p. Under REPLACE the store
// receives exactly the caller's metadata or tags; the catalog metadata of the
// new version is the set the store was told to keep.
func (s *CatalogService) CopyObject(ctx context.Context, tx dbx.DBTX, objectID string, req models.CopyObjectRequest, p models.Principal) (*models.ObjectWithVersion, error) {
	const op = "copy object"
	if req.Path == "" {
		return nil, common.NewValidationError(op, "path", "required")
	}
	if req.ReplaceMetadata && req.Metadata == nil {
		return nil, common.NewValidationError(op, "metadata", "required when replacing metadata")
	}
	if req.ReplaceTags && req.Tags == nil {
		return nil, common.NewValidationError(op, "tags", "required when replacing tags")
	}
	if len(req.Tags) > storage.MaxTags {
		return nil, common.NewValidationError(op, "tags", fmt.Sprintf("at most %d tags are allowed", storage.MaxTags))
	}

	h := handle(s.db, tx)
	src, err := authorize(ctx, s.repomanager, h, op, objectID, p, models.PermRead)
	if err != nil {
		return nil, err
	}
	if err := s.canCreateIn(ctx, h, op, src.BucketID, p); err != nil {
		return nil, err
	}
	from, set, err := s.sourceVersion(ctx, h, op, src, req.SourceVersionID)
	if err != nil {
		return nil, err
	}

	in := storage.CopyObjectInput{
		BucketID:          src.BucketID,
		SourceKey:         src.Path,
		SourceVersionID:   from.S3VersionID,
		DestKey:           req.Path,
		MetadataDirective: storage.DirectiveCopy,
		TaggingDirective:  storage.DirectiveCopy,
	}
	if req.ReplaceMetadata {
		set = req.Metadata
		in.MetadataDirective = storage.DirectiveReplace
		in.ContentType = from.MimeType
		in.Metadata = make(map[string]string, len(set))
		for _, m := range set {
			in.Metadata[m.Key] = m.Value
		}
	}
	if req.ReplaceTags {
		in.TaggingDirective = storage.DirectiveReplace
		in.Tags = req.Tags
	}
	desc, err := s.store.CopyObject(ctx, in)
	if err != nil {
		s.logger.Error(ctx, "copy object failed", "object_id", objectID, "path", req.Path, "error", err)
		return nil, err
	}

	var out *models.ObjectWithVersion
	err = dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) (err error) {
		out, err = s.insertObject(ctx, tx, models.CreateObjectRequest{
			BucketID:     src.BucketID,
			Path:         req.Path,
			Name:         req.Name,
			MimeType:     from.MimeType,
			OriginalName: from.OriginalName,
			S3VersionID:  desc.VersionID,
			ETag:         desc.ETag,
			Metadata:     set,
		}, p)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "copy object failed", "object_id", objectID, "path", req.Path, "error", err)
		return nil, err
	}
	s.logger.Info(ctx, "object copied", "object_id", objectID, "copy_id", out.Object.ID)
	return out, nil
}

// RestoreVersion makes an earlier version current again by copying it onto
// the object's own key. The store keeps the source's metadata and tags, and
// the appended version receives the source version's metadata set.
func (s *CatalogService) RestoreVersion(ctx context.Context, tx dbx.DBTX, objectID, versionID string, p models.Principal) (*models.Version, error) {
	const op = "restore version"
	if versionID == "" {
		return nil, common.NewValidationError(op, "version id", "required")
	}
	h := handle(s.db, tx)
	obj, err := authorize(ctx, s.repomanager, h, op, objectID, p, models.PermUpdate)
	if err != nil {
		return nil, err
	}
	versioned, err := s.store.GetBucketVersioning(ctx, obj.BucketID)
	if err != nil {
		return nil, err
	}
	if !versioned {
		return nil, common.NewValidationError(op, "bucket", "versioning is not enabled")
	}
	from, set, err := s.sourceVersion(ctx, h, op, obj, versionID)
	if err != nil {
		return nil, err
	}
	if from.S3VersionID == "" {
		return nil, common.NewValidationError(op, "version id", "version has no storage version id")
	}

	desc, err := s.store.CopyObject(ctx, storage.CopyObjectInput{
		BucketID:          obj.BucketID,
		SourceKey:         obj.Path,
		SourceVersionID:   from.S3VersionID,
		DestKey:           obj.Path,
		MetadataDirective: storage.DirectiveCopy,
		TaggingDirective:  storage.DirectiveCopy,
	})
	if err != nil {
		return nil, err
	}
	return s.createVersion(ctx, tx, obj, true, models.CreateVersionRequest{
		S3VersionID:  desc.VersionID,
		MimeType:     from.MimeType,
		OriginalName: from.OriginalName,
		ETag:         desc.ETag,
		Metadata:     set,
	}, p)
}

// ImportObjects records an object for every stored key under prefix that
// has no active object in the catalog yet and returns how many were added.
// Content type and storage version come from the store. The caller needs the
// same right on the bucket as CreateObject.
func (s *CatalogService) ImportObjects(ctx context.Context, tx dbx.DBTX, bucketID, prefix string, p models.Principal) (int, error) {
	const op = "import objects"
	h := handle(s.db, tx)
	if err := s.canCreateIn(ctx, h, op, bucketID, p); err != nil {
		return 0, err
	}
	infos, err := s.store.ListObjects(ctx, bucketID, prefix)
	if err != nil {
		return 0, err
	}

	var missing []models.CreateObjectRequest
	for _, info := range infos {
		// zero-length keys ending in "/" are folder placeholders
		if strings.HasSuffix(info.Key, "/") {
			continue
		}
		_, err := s.repomanager.Objects(h).GetByPath(ctx, bucketID, info.Key)
		if err == nil {
			continue
		}
		if !isNotFound(err) {
			return 0, err
		}
		head, err := s.store.HeadObject(ctx, bucketID, info.Key, "")
		if err != nil {
			return 0, err
		}
		ct := head.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		missing = append(missing, models.CreateObjectRequest{
			BucketID:    bucketID,
			Path:        info.Key,
			MimeType:    ct,
			S3VersionID: head.VersionID,
			ETag:        info.ETag,
		})
	}
	if len(missing) == 0 {
		return 0, nil
	}

	err = dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) error {
		for _, req := range missing {
			if _, err := s.insertObject(ctx, tx, req, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "import objects failed", "bucket_id", bucketID, "prefix", prefix, "error", err)
		return 0, err
	}
	s.logger.Info(ctx, "objects imported", "bucket_id", bucketID, "prefix", prefix, "count", len(missing))
	return len(missing), nil
}

// TogglePublic sets the public flag. Grants are untouched: an object is
// readable when it is public or a grant allows it.
func (s *CatalogService) TogglePublic(ctx context.Context, tx dbx.DBTX, objectID string, public bool, p models.Principal) (*models.Object, error) {
	h := handle(s.db, tx)
	if _, err := authorize(ctx, s.repomanager, h, "toggle public", objectID, p, models.PermUpdate); err != nil {
		return nil, err
	}
	return s.repomanager.Objects(h).SetPublic(ctx, objectID, public, p.ActorID())
}

// DeleteObject deletes an object or one of its versions.
//
// On a bucket without versioning the stored content is removed and the
// object is deactivated; its version, grants and metadata stay in the
// catalog. On a versioning bucket, without versionID the store writes a
// delete marker which is appended as a version; with versionID that version
// is removed permanently from the store and the catalog.
func (s *CatalogService) DeleteObject(ctx context.Context, tx dbx.DBTX, objectID, versionID string, p models.Principal) error {
	h := handle(s.db, tx)
	obj, err := authorize(ctx, s.repomanager, h, "delete object", objectID, p, models.PermDelete)
	if err != nil {
		return err
	}
	versioned, err := s.store.GetBucketVersioning(ctx, obj.BucketID)
	if err != nil {
		return err
	}

	switch {
	case !versioned:
		err = s.deactivate(ctx, tx, obj, p)
	case versionID == "":
		err = s.appendDeleteMarker(ctx, tx, obj, p)
	default:
		err = s.deleteVersion(ctx, tx, obj, versionID)
	}
	if err != nil {
		s.logger.Error(ctx, "delete object failed", "object_id", objectID, "version_id", versionID, "error", err)
		return err
	}
	s.logger.Info(ctx, "object deleted", "object_id", objectID, "version_id", versionID)
	return nil
}

func (s *CatalogService) deactivate(ctx context.Context, tx dbx.DBTX, obj *models.Object, p models.Principal) error {
	if _, err := s.store.DeleteObject(ctx, obj.BucketID, obj.Path, ""); err != nil && !storage.IsNotFound(err) {
		return err
	}
	return dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Objects(tx).SetActive(ctx, obj.ID, false, p.ActorID())
	})
}

func (s *CatalogService) appendDeleteMarker(ctx context.Context, tx dbx.DBTX, obj *models.Object, p models.Principal) error {
	res, err := s.store.DeleteObject(ctx, obj.BucketID, obj.Path, "")
	if err != nil {
		return err
	}
	return dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.repomanager.Versions(tx).Create(ctx, &models.Version{
			ID:           newID(),
			ObjectID:     obj.ID,
			S3VersionID:  res.VersionID,
			DeleteMarker: true,
			CreatedBy:    p.ActorID(),
		})
		return err
	})
}

func (s *CatalogService) deleteVersion(ctx context.Context, tx dbx.DBTX, obj *models.Object, versionID string) error {
	s3Version, err := storageVersion(ctx, s.repomanager, handle(s.db, tx), obj, versionID)
	if err != nil {
		return err
	}
	if s3Version == "" {
		return common.NewValidationError("delete object", "version id", "version has no storage version id")
	}
	if _, err := s.store.DeleteObject(ctx, obj.BucketID, obj.Path, s3Version); err != nil && !storage.IsNotFound(err) {
		return err
	}
	return dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Versions(tx).Delete(ctx, versionID); err != nil {
			return err
		}
		_, err := s.metadata.PruneOrphanedMetadata(ctx, tx)
		return err
	})
}

// SyncVersions records versions present in the store but missing from the
// catalog, oldest first, and returns how many were added. The content type
// of each added version comes from the store, falling back to the current
// version's. Buckets without versioning have nothing to sync.
func (s *CatalogService) SyncVersions(ctx context.Context, tx dbx.DBTX, objectID string, p models.Principal) (int, error) {
	h := handle(s.db, tx)
	obj, err := authorize(ctx, s.repomanager, h, "sync versions", objectID, p, models.PermUpdate)
	if err != nil {
		return 0, err
	}
	versioned, err := s.store.GetBucketVersioning(ctx, obj.BucketID)
	if err != nil || !versioned {
		return 0, err
	}
	infos, err := s.store.ListObjectVersions(ctx, obj.BucketID, obj.Path)
	if err != nil {
		return 0, err
	}

	repo := s.repomanager.Versions(h)
	fallback := ""
	if cur, err := repo.Latest(ctx, objectID); err == nil {
		fallback = cur.MimeType
	} else if !isNotFound(err) {
		return 0, err
	}
	var missing []*models.Version
	for i := len(infos) - 1; i >= 0; i-- {
		info := infos[i]
		_, err := repo.GetByS3VersionID(ctx, objectID, info.VersionID)
		if err == nil {
			continue
		}
		if !isNotFound(err) {
			return 0, err
		}
		v := &models.Version{
			ID:           newID(),
			ObjectID:     objectID,
			S3VersionID:  info.VersionID,
			ETag:         info.ETag,
			DeleteMarker: info.DeleteMarker,
			CreatedBy:    p.ActorID(),
			CreatedAt:    info.LastModified,
		}
		if !info.DeleteMarker {
			v.MimeType, err = s.contentType(ctx, obj, info.VersionID, fallback)
			if err != nil {
				return 0, err
			}
		}
		missing = append(missing, v)
	}
	if len(missing) == 0 {
		return 0, nil
	}

	err = dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Versions(tx)
		for _, v := range missing {
			if _, err := repo.Create(ctx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "sync versions failed", "object_id", objectID, "error", err)
		return 0, err
	}
	return len(missing), nil
}

func (s *CatalogService) contentType(ctx context.Context, obj *models.Object, s3Version, fallback string) (string, error) {
	info, err := s.store.HeadObject(ctx, obj.BucketID, obj.Path, s3Version)
	switch {
	case storage.IsNotFound(err):
		return fallback, nil
	case err != nil:
		return "", err
	case info.ContentType == "":
		return fallback, nil
	}
	return info.ContentType, nil
}

// presignCodes maps each method PresignURL signs to the permission it needs.
var presignCodes = map[string]models.PermissionCode{
	"":       models.PermRead,
	"GET":    models.PermRead,
	"HEAD":   models.PermRead,
	"PUT":    models.PermUpdate,
	"DELETE": models.PermDelete,
}

// PresignURL signs a request against an object. GET and HEAD need READ, PUT
// needs UPDATE and DELETE needs DELETE. Other methods are rejected before the
// object is looked up.
func (s *CatalogService) PresignURL(ctx context.Context, objectID, versionID, method string, p models.Principal) (string, error) {
	method = strings.ToUpper(method)
	code, ok := presignCodes[method]
	if !ok {
		return "", common.NewValidationError("presign", "method", fmt.Sprintf("unsupported method %q", method))
	}
	obj, err := authorize(ctx, s.repomanager, s.db, "presign", objectID, p, code)
	if err != nil {
		return "", err
	}
	s3Version, err := storageVersion(ctx, s.repomanager, s.db, obj, versionID)
	if err != nil {
		return "", err
	}
	return s.store.PresignURL(ctx, storage.PresignInput{
		BucketID:  obj.BucketID,
		Method:    method,
		Key:       obj.Path,
		VersionID: s3Version,
	})
}

func flatten(md []models.VersionMetadata) []models.Metadata {
	out := make([]models.Metadata, len(md))
	for i, m := range md {
		out[i] = models.Metadata{ID: m.MetadataID, Key: m.Key, Value: m.Value}
	}
	return out
}

// IsPartialUpload reports whether err only signals that tags were not
// applied after the content was stored.
func IsPartialUpload(err error) bool {
	return errors.Is(err, common.ErrorPartialUpload)
}
