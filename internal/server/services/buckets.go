package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/cryptox"
	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/objcatalog/internal/server/storage"
)

// BucketProber checks a descriptor before it is registered.
type BucketProber interface {
	HeadBucketDescriptor(ctx context.Context, b *storage.Bucket) error
}

// BucketService is the bucket registry. It also resolves bucket ids to
// storage descriptors for the adapter.
type BucketService struct {
	db            DB
	repomanager   repomanager.RepositoryManager
	prober        BucketProber
	defaultBucket *storage.Bucket
	passphrase    string
	logger        logging.Logger
}

var _ storage.BucketResolver = (*BucketService)(nil)

func NewBucketService(db DB, m repomanager.RepositoryManager, prober BucketProber, defaultBucket *storage.Bucket, passphrase string, logger logging.Logger) *BucketService {
	return &BucketService{
		db:            db,
		repomanager:   m,
		prober:        prober,
		defaultBucket: defaultBucket,
		passphrase:    passphrase,
		logger:        logger.With("module", "buckets"),
	}
}

// CreateBucket probes the bucket with the given credentials, seals the
// secret and registers it. The creator receives every permission code on
// the bucket. The returned record carries no secret.
func (s *BucketService) CreateBucket(ctx context.Context, tx dbx.DBTX, req models.CreateBucketRequest, p models.Principal) (*models.Bucket, error) {
	const op = "create bucket"
	switch {
	case req.Bucket == "":
		return nil, common.NewValidationError(op, "bucket", "required")
	case req.Endpoint == "":
		return nil, common.NewValidationError(op, "endpoint", "required")
	case req.AccessKeyID == "" || req.SecretAccessKey == "":
		return nil, common.NewValidationError(op, "credentials", "access key id and secret are required")
	case p.Anonymous:
		return nil, fmt.Errorf("%s: %w", op, common.ErrorUnauthorized)
	}

	desc := &storage.Bucket{
		Endpoint:        req.Endpoint,
		Bucket:          req.Bucket,
		Key:             req.Key,
		Region:          req.Region,
		AccessKeyID:     req.AccessKeyID,
		SecretAccessKey: req.SecretAccessKey,
	}
	if err := s.prober.HeadBucketDescriptor(ctx, desc); err != nil {
		s.logger.Warn(ctx, "bucket probe failed", "bucket", req.Bucket, "endpoint", req.Endpoint, "error", err)
		return nil, err
	}

	sealed, err := cryptox.SealSecret(req.SecretAccessKey, s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("error sealing bucket secret: %w", err)
	}
	name := req.BucketName
	if name == "" {
		name = req.Bucket
	}

	var out *models.Bucket
	err = dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) (err error) {
		out, err = s.repomanager.Buckets(tx).Create(ctx, &models.Bucket{
			BucketID:        newID(),
			BucketName:      name,
			Bucket:          req.Bucket,
			Endpoint:        req.Endpoint,
			Key:             req.Key,
			Region:          req.Region,
			AccessKeyID:     req.AccessKeyID,
			SecretAccessKey: sealed,
			Active:          true,
			CreatedBy:       p.ActorID(),
		})
		if err != nil {
			return fmt.Errorf("error creating bucket: %w", err)
		}
		if p.System {
			return nil
		}
		return grantAll(ctx, s.repomanager, tx, models.PermissionScope{BucketID: out.BucketID}, p.UserID, p.ActorID())
	})
	if err != nil {
		s.logger.Error(ctx, "create bucket failed", "bucket", req.Bucket, "error", err)
		return nil, err
	}
	s.logger.Info(ctx, "bucket registered", "bucket_id", out.BucketID, "bucket", out.Bucket)
	cp := *out
	cp.SecretAccessKey = ""
	return &cp, nil
}

// ReadBucket returns a registered bucket without its secret.
func (s *BucketService) ReadBucket(ctx context.Context, bucketID string) (*models.Bucket, error) {
	b, err := s.repomanager.Buckets(s.db).Get(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	b.SecretAccessKey = ""
	return b, nil
}

// ListBuckets returns the active buckets p holds any grant on; the system
// principal sees all of them.
func (s *BucketService) ListBuckets(ctx context.Context, p models.Principal) ([]*models.Bucket, error) {
	var ids []string
	if !p.System {
		if p.Anonymous || p.UserID == "" {
			return nil, nil
		}
		grants, err := s.repomanager.Permissions(s.db).Search(ctx, models.PermissionFilter{UserIDs: []string{p.UserID}})
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		for _, g := range grants {
			if !seen[g.BucketID] {
				seen[g.BucketID] = true
				ids = append(ids, g.BucketID)
			}
		}
		if len(ids) == 0 {
			return nil, nil
		}
	}
	list, err := s.repomanager.Buckets(s.db).List(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range list {
		b.SecretAccessKey = ""
	}
	return list, nil
}

// ResolveBucket returns the storage descriptor for bucketID with its secret
// opened. An empty id selects the configured default bucket.
func (s *BucketService) ResolveBucket(ctx context.Context, bucketID string) (*storage.Bucket, error) {
	if bucketID == "" {
		if s.defaultBucket == nil {
			return nil, &common.NotFoundError{Resource: "default bucket"}
		}
		return s.defaultBucket, nil
	}
	b, err := s.repomanager.Buckets(s.db).Get(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	if !b.Active {
		return nil, &common.NotFoundError{Resource: "bucket", ID: bucketID}
	}
	secret, err := cryptox.OpenSecret(b.SecretAccessKey, s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("error opening secret of bucket %s: %w", bucketID, err)
	}
	return &storage.Bucket{
		ID:              b.BucketID,
		Endpoint:        b.Endpoint,
		Bucket:          b.Bucket,
		Key:             b.Key,
		Region:          b.Region,
		AccessKeyID:     b.AccessKeyID,
		SecretAccessKey: secret,
	}, nil
}

// DeleteBucket removes a registration together with its objects and grants.
// Stored content is not touched. Callers other than the system principal
// need MANAGE on the bucket.
func (s *BucketService) DeleteBucket(ctx context.Context, tx dbx.DBTX, bucketID string, p models.Principal) error {
	err := dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) error {
		if !p.System {
			grants, err := s.repomanager.Permissions(tx).Search(ctx, models.PermissionFilter{
				UserIDs:   []string{p.UserID},
				BucketIDs: []string{bucketID},
				Codes:     []models.PermissionCode{models.PermManage},
			})
			if err != nil {
				return err
			}
			if len(grants) == 0 {
				return fmt.Errorf("delete bucket: %w: MANAGE on bucket %s", common.ErrorForbidden, bucketID)
			}
		}
		if err := s.repomanager.Buckets(tx).Delete(ctx, bucketID); err != nil {
			return err
		}
		_, err := s.repomanager.Metadata(tx).PruneOrphans(ctx)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "delete bucket failed", "bucket_id", bucketID, "error", err)
		return err
	}
	s.logger.Info(ctx, "bucket deleted", "bucket_id", bucketID)
	return nil
}
