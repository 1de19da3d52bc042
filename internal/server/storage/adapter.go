package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server/metrics"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

// Directive selects whether a copy keeps the source's metadata or tags
// (COPY) or substitutes the caller's set (REPLACE).
type Directive string

const (
	DirectiveCopy    Directive = "COPY"
	DirectiveReplace Directive = "REPLACE"
)

// DefaultPresignExpiry applies when neither the call nor the adapter sets one.
const DefaultPresignExpiry = 300 * time.Second

type CopyObjectInput struct {
	BucketID          string
	SourceKey         string
	SourceVersionID   string
	DestKey           string
	ContentType       string
	MetadataDirective Directive
	Metadata          map[string]string
	TaggingDirective  Directive
	Tags              []models.Tag
}

type PutObjectInput struct {
	BucketID      string
	Key           string
	Body          io.Reader
	ContentLength int64
	ContentType   string
	Metadata      map[string]string
}

type UploadInput struct {
	PutObjectInput
	Tags []models.Tag
}

// ObjectDescriptor identifies a written object.
type ObjectDescriptor struct {
	Bucket    string
	Key       string
	VersionID string
	ETag      string
}

// UploadResult is returned by Upload. Tagging holds the encoded tag set that
// was (or should have been) applied.
type UploadResult struct {
	ObjectDescriptor
	Tagging     string
	TagsApplied bool
}

type ObjectInfo struct {
	Key           string
	VersionID     string
	ETag          string
	ContentType   string
	ContentLength int64
	LastModified  time.Time
	Metadata      map[string]string
	DeleteMarker  bool
}

type ReadObjectOutput struct {
	ObjectInfo
	Body io.ReadCloser
}

// VersionInfo is one entry of a key's storage version history.
type VersionInfo struct {
	Key          string
	VersionID    string
	ETag         string
	IsLatest     bool
	DeleteMarker bool
	LastModified time.Time
}

type DeleteResult struct {
	VersionID    string
	DeleteMarker bool
}

type PresignInput struct {
	BucketID    string
	Method      string
	Key         string
	VersionID   string
	ContentType string
	Expires     time.Duration
}

// Adapter performs object store calls against buckets resolved per call.
// Nothing is retried.
type Adapter struct {
	*Prober
	resolver      BucketResolver
	presignExpiry time.Duration
	logger        logging.Logger
}

func NewAdapter(resolver BucketResolver, factory ClientFactory, presignExpiry time.Duration, logger logging.Logger) *Adapter {
	if presignExpiry <= 0 {
		presignExpiry = DefaultPresignExpiry
	}
	return &Adapter{
		Prober:        NewProber(factory),
		resolver:      resolver,
		presignExpiry: presignExpiry,
		logger:        logger.With("module", "storage"),
	}
}

func (a *Adapter) client(ctx context.Context, bucketID string) (*Bucket, S3API, error) {
	b, err := a.resolver.ResolveBucket(ctx, bucketID)
	if err != nil {
		return nil, nil, err
	}
	c, err := a.factory.Client(ctx, b)
	if err != nil {
		return b, nil, wrapErr("client", b, "", err)
	}
	return b, c, nil
}

// CopyObject copies SourceKey to DestKey, both relative to the bucket's
// prefix. Under REPLACE exactly the caller's metadata map (or tag set) is
// sent and the source's is ignored.
func (a *Adapter) CopyObject(ctx context.Context, in CopyObjectInput) (out *ObjectDescriptor, err error) {
	defer observe("CopyObject", time.Now(), &err)
	b, c, err := a.client(ctx, in.BucketID)
	if err != nil {
		return nil, err
	}

	dest := b.ObjectKey(in.DestKey)
	params := &s3.CopyObjectInput{
		Bucket:     aws.String(b.Bucket),
		Key:        aws.String(dest),
		CopySource: aws.String(copySource(b.Bucket, b.ObjectKey(in.SourceKey), in.SourceVersionID)),
	}
	if in.MetadataDirective == DirectiveReplace {
		params.MetadataDirective = types.MetadataDirectiveReplace
		params.Metadata = in.Metadata
		if params.Metadata == nil {
			params.Metadata = map[string]string{}
		}
		if in.ContentType != "" {
			params.ContentType = aws.String(in.ContentType)
		}
	} else {
		params.MetadataDirective = types.MetadataDirectiveCopy
	}
	if in.TaggingDirective == DirectiveReplace {
		params.TaggingDirective = types.TaggingDirectiveReplace
		params.Tagging = aws.String(EncodeTags(in.Tags))
	} else {
		params.TaggingDirective = types.TaggingDirectiveCopy
	}

	res, err := c.CopyObject(ctx, params)
	if err != nil {
		return nil, wrapErr("CopyObject", b, dest, err)
	}
	out = &ObjectDescriptor{Bucket: b.Bucket, Key: dest, VersionID: aws.ToString(res.VersionId)}
	if res.CopyObjectResult != nil {
		out.ETag = aws.ToString(res.CopyObjectResult.ETag)
	}
	return out, nil
}

func (a *Adapter) PutObject(ctx context.Context, in PutObjectInput) (out *ObjectDescriptor, err error) {
	defer observe("PutObject", time.Now(), &err)
	b, c, err := a.client(ctx, in.BucketID)
	if err != nil {
		return nil, err
	}
	return a.put(ctx, b, c, in)
}

func (a *Adapter) put(ctx context.Context, b *Bucket, c S3API, in PutObjectInput) (*ObjectDescriptor, error) {
	key := b.ObjectKey(in.Key)
	params := &s3.PutObjectInput{
		Bucket:   aws.String(b.Bucket),
		Key:      aws.String(key),
		Body:     in.Body,
		Metadata: in.Metadata,
	}
	if in.ContentType != "" {
		params.ContentType = aws.String(in.ContentType)
	}
	if in.ContentLength > 0 {
		params.ContentLength = aws.Int64(in.ContentLength)
	}
	res, err := c.PutObject(ctx, params)
	if err != nil {
		return nil, wrapErr("PutObject", b, key, err)
	}
	return &ObjectDescriptor{
		Bucket:    b.Bucket,
		Key:       key,
		VersionID: aws.ToString(res.VersionId),
		ETag:      aws.ToString(res.ETag),
	}, nil
}

// Upload writes content and then applies tags with a second, separate call.
// When the content is stored but tagging fails, the result is returned
// together with a *common.PartialUploadError so the caller can retry the
// tagging alone or compensate by deleting the written version.
func (a *Adapter) Upload(ctx context.Context, in UploadInput) (out *UploadResult, err error) {
	defer observe("Upload", time.Now(), &err)
	b, c, err := a.client(ctx, in.BucketID)
	if err != nil {
		return nil, err
	}

	desc, err := a.put(ctx, b, c, in.PutObjectInput)
	if err != nil {
		return nil, err
	}
	out = &UploadResult{ObjectDescriptor: *desc}
	if len(in.Tags) == 0 {
		return out, nil
	}

	out.Tagging = EncodeTags(in.Tags)
	if terr := a.putTagging(ctx, b, c, desc.Key, desc.VersionID, in.Tags); terr != nil {
		metrics.PartialUploadsTotal.Inc()
		a.logger.Warn(ctx, "upload stored without tags",
			"bucket", b.Bucket, "key", desc.Key, "version_id", desc.VersionID, "error", terr)
		return out, &common.PartialUploadError{Bucket: b.Bucket, Key: desc.Key, VersionID: desc.VersionID, Cause: terr}
	}
	out.TagsApplied = true
	return out, nil
}

func (a *Adapter) ReadObject(ctx context.Context, bucketID, key, versionID string) (out *ReadObjectOutput, err error) {
	defer observe("GetObject", time.Now(), &err)
	b, c, err := a.client(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	key = b.ObjectKey(key)
	res, err := c.GetObject(ctx, &s3.GetObjectInput{
		Bucket:    aws.String(b.Bucket),
		Key:       aws.String(key),
		VersionId: optional(versionID),
	})
	if err != nil {
		return nil, wrapErr("GetObject", b, key, err)
	}
	return &ReadObjectOutput{
		ObjectInfo: ObjectInfo{
			Key:           key,
			VersionID:     aws.ToString(res.VersionId),
			ETag:          aws.ToString(res.ETag),
			ContentType:   aws.ToString(res.ContentType),
			ContentLength: aws.ToInt64(res.ContentLength),
			LastModified:  aws.ToTime(res.LastModified),
			Metadata:      res.Metadata,
		},
		Body: res.Body,
	}, nil
}

func (a *Adapter) HeadObject(ctx context.Context, bucketID, key, versionID string) (out *ObjectInfo, err error) {
	defer observe("HeadObject", time.Now(), &err)
	b, c, err := a.client(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	key = b.ObjectKey(key)
	res, err := c.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:    aws.String(b.Bucket),
		Key:       aws.String(key),
		VersionId: optional(versionID),
	})
	if err != nil {
		return nil, wrapErr("HeadObject", b, key, err)
	}
	return &ObjectInfo{
		Key:           key,
		VersionID:     aws.ToString(res.VersionId),
		ETag:          aws.ToString(res.ETag),
		ContentType:   aws.ToString(res.ContentType),
		ContentLength: aws.ToInt64(res.ContentLength),
		LastModified:  aws.ToTime(res.LastModified),
		Metadata:      res.Metadata,
		DeleteMarker:  aws.ToBool(res.DeleteMarker),
	}, nil
}

// ListObjects lists keys under prefix, taken relative to the bucket's own
// prefix. All pages are read and the returned keys are bucket-relative.
func (a *Adapter) ListObjects(ctx context.Context, bucketID, prefix string) (out []ObjectInfo, err error) {
	defer observe("ListObjectsV2", time.Now(), &err)
	b, c, err := a.client(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	prefix = JoinKey(b.Key, prefix)

	p := s3.NewListObjectsV2Paginator(c, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.Bucket),
		Prefix: optional(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, wrapErr("ListObjectsV2", b, prefix, err)
		}
		for _, o := range page.Contents {
			out = append(out, ObjectInfo{
				Key:           b.RelativeKey(aws.ToString(o.Key)),
				ETag:          aws.ToString(o.ETag),
				ContentLength: aws.ToInt64(o.Size),
				LastModified:  aws.ToTime(o.LastModified),
			})
		}
	}
	return out, nil
}

// ListObjectVersions returns the storage history of exactly key, delete
// markers included, newest first. Entries carry the full store key.
func (a *Adapter) ListObjectVersions(ctx context.Context, bucketID, key string) (out []VersionInfo, err error) {
	defer observe("ListObjectVersions", time.Now(), &err)
	b, c, err := a.client(ctx, bucketID)
	if err != nil {
		return nil, err
	}

	key = b.ObjectKey(key)
	params := &s3.ListObjectVersionsInput{
		Bucket: aws.String(b.Bucket),
		Prefix: aws.String(key),
	}
	for {
		page, err := c.ListObjectVersions(ctx, params)
		if err != nil {
			return nil, wrapErr("ListObjectVersions", b, key, err)
		}
		for _, v := range page.Versions {
			if aws.ToString(v.Key) != key {
				continue
			}
			out = append(out, VersionInfo{
				Key:          key,
				VersionID:    aws.ToString(v.VersionId),
				ETag:         aws.ToString(v.ETag),
				IsLatest:     aws.ToBool(v.IsLatest),
				LastModified: aws.ToTime(v.LastModified),
			})
		}
		for _, d := range page.DeleteMarkers {
			if aws.ToString(d.Key) != key {
				continue
			}
			out = append(out, VersionInfo{
				Key:          key,
				VersionID:    aws.ToString(d.VersionId),
				IsLatest:     aws.ToBool(d.IsLatest),
				DeleteMarker: true,
				LastModified: aws.ToTime(d.LastModified),
			})
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		params.KeyMarker = page.NextKeyMarker
		params.VersionIdMarker = page.NextVersionIdMarker
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsLatest != out[j].IsLatest {
			return out[i].IsLatest
		}
		return out[i].LastModified.After(out[j].LastModified)
	})
	return out, nil
}

// GetBucketVersioning reports whether versioning is Enabled. Suspended and
// never-enabled buckets both report false.
func (a *Adapter) GetBucketVersioning(ctx context.Context, bucketID string) (enabled bool, err error) {
	defer observe("GetBucketVersioning", time.Now(), &err)
	b, c, err := a.client(ctx, bucketID)
	if err != nil {
		return false, err
	}
	res, err := c.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(b.Bucket)})
	if err != nil {
		return false, wrapErr("GetBucketVersioning", b, "", err)
	}
	return res.Status == types.BucketVersioningStatusEnabled, nil
}

func (a *Adapter) GetObjectTagging(ctx context.Context, bucketID, key, versionID string) (out []models.Tag, err error) {
	defer observe("GetObjectTagging", time.Now(), &err)
	b, c, err := a.client(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	key = b.ObjectKey(key)
	res, err := c.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket:    aws.String(b.Bucket),
		Key:       aws.String(key),
		VersionId: optional(versionID),
	})
	if err != nil {
		return nil, wrapErr("GetObjectTagging", b, key, err)
	}
	return fromTagSet(res.TagSet), nil
}

// PutObjectTagging replaces the object's whole tag set with tags.
func (a *Adapter) PutObjectTagging(ctx context.Context, bucketID, key, versionID string, tags []models.Tag) (err error) {
	defer observe("PutObjectTagging", time.Now(), &err)
	b, c, err := a.client(ctx, bucketID)
	if err != nil {
		return err
	}
	return a.putTagging(ctx, b, c, b.ObjectKey(key), versionID, tags)
}

func (a *Adapter) putTagging(ctx context.Context, b *Bucket, c S3API, key, versionID string, tags []models.Tag) error {
	_, err := c.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:    aws.String(b.Bucket),
		Key:       aws.String(key),
		VersionId: optional(versionID),
		Tagging:   &types.Tagging{TagSet: toTagSet(tags)},
	})
	return wrapErr("PutObjectTagging", b, key, err)
}

func (a *Adapter) DeleteObjectTagging(ctx context.Context, bucketID, key, versionID string) (err error) {
	defer observe("DeleteObjectTagging", time.Now(), &err)
	b, c, err := a.client(ctx, bucketID)
	if err != nil {
		return err
	}
	key = b.ObjectKey(key)
	_, err = c.DeleteObjectTagging(ctx, &s3.DeleteObjectTaggingInput{
		Bucket:    aws.String(b.Bucket),
		Key:       aws.String(key),
		VersionId: optional(versionID),
	})
	return wrapErr("DeleteObjectTagging", b, key, err)
}

// DeleteObject deletes key. Without versionID on a versioned bucket the
// store writes a delete marker, reported in the result.
func (a *Adapter) DeleteObject(ctx context.Context, bucketID, key, versionID string) (out *DeleteResult, err error) {
	defer observe("DeleteObject", time.Now(), &err)
	b, c, err := a.client(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	key = b.ObjectKey(key)
	res, err := c.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:    aws.String(b.Bucket),
		Key:       aws.String(key),
		VersionId: optional(versionID),
	})
	if err != nil {
		return nil, wrapErr("DeleteObject", b, key, err)
	}
	return &DeleteResult{VersionID: aws.ToString(res.VersionId), DeleteMarker: aws.ToBool(res.DeleteMarker)}, nil
}

// PresignURL returns a time-limited URL for Method (GET, PUT, HEAD or
// DELETE) on Key.
func (a *Adapter) PresignURL(ctx context.Context, in PresignInput) (signed string, err error) {
	defer observe("Presign", time.Now(), &err)
	b, err := a.resolver.ResolveBucket(ctx, in.BucketID)
	if err != nil {
		return "", err
	}
	p, err := a.factory.Presigner(ctx, b)
	if err != nil {
		return "", wrapErr("Presign", b, in.Key, err)
	}

	expires := in.Expires
	if expires <= 0 {
		expires = a.presignExpiry
	}
	opt := s3.WithPresignExpires(expires)
	bucket, key, version := aws.String(b.Bucket), aws.String(b.ObjectKey(in.Key)), optional(in.VersionID)

	var req *v4.PresignedHTTPRequest
	switch strings.ToUpper(in.Method) {
	case "", "GET":
		req, err = p.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: bucket, Key: key, VersionId: version}, opt)
	case "PUT":
		params := &s3.PutObjectInput{Bucket: bucket, Key: key}
		if in.ContentType != "" {
			params.ContentType = aws.String(in.ContentType)
		}
		req, err = p.PresignPutObject(ctx, params, opt)
	case "HEAD":
		req, err = p.PresignHeadObject(ctx, &s3.HeadObjectInput{Bucket: bucket, Key: key, VersionId: version}, opt)
	case "DELETE":
		req, err = p.PresignDeleteObject(ctx, &s3.DeleteObjectInput{Bucket: bucket, Key: key, VersionId: version}, opt)
	default:
		return "", common.NewValidationError("presign", "method", fmt.Sprintf("unsupported method %q", in.Method))
	}
	if err != nil {
		return "", wrapErr("Presign", b, *key, err)
	}
	return req.URL, nil
}

// HeadBucket probes a registered (or the default) bucket.
func (a *Adapter) HeadBucket(ctx context.Context, bucketID string) error {
	b, err := a.resolver.ResolveBucket(ctx, bucketID)
	if err != nil {
		return err
	}
	return a.HeadBucketDescriptor(ctx, b)
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveStorage(op, start, *err)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// copySource renders "bucket/key[?versionId=v]" with each key segment
// escaped.
func copySource(bucket, key, versionID string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	src := bucket + "/" + strings.Join(parts, "/")
	if versionID != "" {
		src += "?versionId=" + url.QueryEscape(versionID)
	}
	return src
}
