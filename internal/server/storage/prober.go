package storage

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Prober checks that a descriptor points at a reachable bucket whose
// credentials are accepted. It needs no resolver, so the bucket registry can
// use it before a descriptor is stored.
type Prober struct {
	factory ClientFactory
}

func NewProber(factory ClientFactory) *Prober {
	return &Prober{factory: factory}
}

func (p *Prober) HeadBucketDescriptor(ctx context.Context, b *Bucket) (err error) {
	defer observe("HeadBucket", time.Now(), &err)
	c, err := p.factory.Client(ctx, b)
	if err != nil {
		return wrapErr("HeadBucket", b, "", err)
	}
	_, err = c.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.Bucket)})
	return wrapErr("HeadBucket", b, "", err)
}
