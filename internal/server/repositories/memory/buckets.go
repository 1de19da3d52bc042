package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type bucketRepo struct{ s *Store }

func (r bucketRepo) Create(_ context.Context, b *models.Bucket) (*models.Bucket, error) {
	defer r.s.lock("buckets.Create")()
	for _, e := range r.s.buckets {
		if e.BucketID == b.BucketID || (e.Bucket == b.Bucket && e.Endpoint == b.Endpoint && e.Key == b.Key) {
			return nil, fmt.Errorf("db error: duplicate bucket %s", b.Bucket)
		}
	}
	b.CreatedAt = r.s.stamp(b.CreatedAt)
	cp := *b
	r.s.buckets[b.BucketID] = &cp
	return b, nil
}

func (r bucketRepo) Get(_ context.Context, bucketID string) (*models.Bucket, error) {
	defer r.s.lock("buckets.Get")()
	b, ok := r.s.buckets[bucketID]
	if !ok {
		return nil, &common.NotFoundError{Resource: "bucket", ID: bucketID}
	}
	cp := *b
	return &cp, nil
}

func (r bucketRepo) List(_ context.Context, bucketIDs []string) ([]*models.Bucket, error) {
	defer r.s.lock("buckets.List")()
	var out []*models.Bucket
	for _, b := range r.s.buckets {
		if !b.Active || (len(bucketIDs) > 0 && !contains(bucketIDs, b.BucketID)) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketName < out[j].BucketName })
	return out, nil
}

func (r bucketRepo) Delete(_ context.Context, bucketID string) error {
	defer r.s.lock("buckets.Delete")()
	if _, ok := r.s.buckets[bucketID]; !ok {
		return &common.NotFoundError{Resource: "bucket", ID: bucketID}
	}
	delete(r.s.buckets, bucketID)
	for id, o := range r.s.objects {
		if o.BucketID == bucketID {
			r.s.deleteObject(id)
		}
	}
	kept := r.s.permissions[:0]
	for _, p := range r.s.permissions {
		if p.BucketID != bucketID {
			kept = append(kept, p)
		}
	}
	r.s.permissions = kept
	return nil
}
