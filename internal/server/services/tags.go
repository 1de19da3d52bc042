package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/objcatalog/internal/server/storage"
)

// TagService edits storage tags of an object version. Tags live only in the
// store; nothing is written to the catalog.
type TagService struct {
	db          DB
	repomanager repomanager.RepositoryManager
	store       ObjectStore
	logger      logging.Logger
}

func NewTagService(db DB, m repomanager.RepositoryManager, store ObjectStore, logger logging.Logger) *TagService {
	return &TagService{
		db:          db,
		repomanager: m,
		store:       store,
		logger:      logger.With("module", "tags"),
	}
}

type tagTarget struct {
	bucketID  string
	key       string
	versionID string
}

func (s *TagService) target(ctx context.Context, op, objectID, versionID string, p models.Principal, code models.PermissionCode) (*tagTarget, error) {
	obj, err := authorize(ctx, s.repomanager, s.db, op, objectID, p, code)
	if err != nil {
		return nil, err
	}
	s3Version, err := storageVersion(ctx, s.repomanager, s.db, obj, versionID)
	if err != nil {
		return nil, err
	}
	return &tagTarget{bucketID: obj.BucketID, key: obj.Path, versionID: s3Version}, nil
}

func checkTags(op string, tags []models.Tag) error {
	if len(tags) > storage.MaxTags {
		return common.NewValidationError(op, "tags", fmt.Sprintf("at most %d tags are allowed, got %d", storage.MaxTags, len(tags)))
	}
	for _, t := range tags {
		if t.Key == "" {
			return common.NewValidationError(op, "tags", "empty tag key")
		}
	}
	return nil
}

// FetchTags returns the tags of a version (empty versionID: latest), sorted
// by key.
func (s *TagService) FetchTags(ctx context.Context, objectID, versionID string, p models.Principal) ([]models.Tag, error) {
	t, err := s.target(ctx, "fetch tags", objectID, versionID, p, models.PermRead)
	if err != nil {
		return nil, err
	}
	return s.store.GetObjectTagging(ctx, t.bucketID, t.key, t.versionID)
}

// AddTags keeps the existing tags and overlays tags on them; a key present
// in both takes the new value.
func (s *TagService) AddTags(ctx context.Context, objectID, versionID string, tags []models.Tag, p models.Principal) ([]models.Tag, error) {
	const op = "add tags"
	if err := checkTags(op, tags); err != nil {
		return nil, err
	}
	t, err := s.target(ctx, op, objectID, versionID, p, models.PermUpdate)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetObjectTagging(ctx, t.bucketID, t.key, t.versionID)
	if err != nil {
		return nil, err
	}
	merged := storage.MergeTags(existing, tags)
	if err := checkTags(op, merged); err != nil {
		return nil, err
	}
	if err := s.store.PutObjectTagging(ctx, t.bucketID, t.key, t.versionID, merged); err != nil {
		s.logger.Error(ctx, "add tags failed", "object_id", objectID, "error", err)
		return nil, err
	}
	return merged, nil
}

// ReplaceTags sets exactly tags, discarding whatever was there.
func (s *TagService) ReplaceTags(ctx context.Context, objectID, versionID string, tags []models.Tag, p models.Principal) error {
	const op = "replace tags"
	if err := checkTags(op, tags); err != nil {
		return err
	}
	t, err := s.target(ctx, op, objectID, versionID, p, models.PermUpdate)
	if err != nil {
		return err
	}
	if err := s.store.PutObjectTagging(ctx, t.bucketID, t.key, t.versionID, tags); err != nil {
		s.logger.Error(ctx, "replace tags failed", "object_id", objectID, "error", err)
		return err
	}
	return nil
}

// DeleteTags removes the named keys, or every tag when keys is empty.
func (s *TagService) DeleteTags(ctx context.Context, objectID, versionID string, keys []string, p models.Principal) error {
	t, err := s.target(ctx, "delete tags", objectID, versionID, p, models.PermUpdate)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		err = s.store.DeleteObjectTagging(ctx, t.bucketID, t.key, t.versionID)
	} else {
		var existing []models.Tag
		existing, err = s.store.GetObjectTagging(ctx, t.bucketID, t.key, t.versionID)
		if err == nil {
			err = s.store.PutObjectTagging(ctx, t.bucketID, t.key, t.versionID, storage.WithoutTags(existing, keys))
		}
	}
	if err != nil {
		s.logger.Error(ctx, "delete tags failed", "object_id", objectID, "error", err)
		return err
	}
	return nil
}
