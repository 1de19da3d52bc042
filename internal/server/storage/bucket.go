package storage

import (
	"context"
	"strings"
)

// Bucket is a resolved descriptor: where a bucket lives and how to sign
// requests to it. Key is the prefix every object key is placed under.
type Bucket struct {
	ID              string
	Endpoint        string
	Bucket          string
	Key             string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// BucketResolver looks up a descriptor by registry id. An empty id selects
// the configured default bucket.
type BucketResolver interface {
	ResolveBucket(ctx context.Context, bucketID string) (*Bucket, error)
}

// StaticResolver serves only the default bucket.
type StaticResolver struct {
	Default *Bucket
}

func (r StaticResolver) ResolveBucket(_ context.Context, bucketID string) (*Bucket, error) {
	if bucketID != "" {
		return nil, errUnknownBucket(bucketID)
	}
	return r.Default, nil
}

// ObjectKey places a bucket-relative path under the bucket's prefix.
func (b *Bucket) ObjectKey(path string) string {
	return JoinKey(b.Key, path)
}

// RelativeKey strips the bucket's prefix from a stored key.
func (b *Bucket) RelativeKey(key string) string {
	if b.Key == "" {
		return key
	}
	return strings.TrimPrefix(key, strings.TrimSuffix(b.Key, "/")+"/")
}

// JoinKey joins a bucket prefix and a relative object path.
func JoinKey(prefix, path string) string {
	if prefix == "" {
		return strings.TrimPrefix(path, "/")
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(path, "/")
}
