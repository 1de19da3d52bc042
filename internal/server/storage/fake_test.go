package storage

import (
	"context"
	"errors"
	"fmt"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// apiError mimics the smithy errors the SDK returns.
type apiError struct {
	code   string
	status int
}

func (e *apiError) Error() string                 { return fmt.Sprintf("api error %s", e.code) }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }
func (e *apiError) HTTPStatusCode() int           { return e.status }

// fakeS3 records inputs and returns canned outputs. Unset hooks succeed with
// an empty output.
type fakeS3 struct {
	put        *s3.PutObjectInput
	putOut     *s3.PutObjectOutput
	putErr     error
	copyIn     *s3.CopyObjectInput
	copyOut    *s3.CopyObjectOutput
	tagIn      *s3.PutObjectTaggingInput
	tagErr     error
	getTagOut  *s3.GetObjectTaggingOutput
	deleteIn   *s3.DeleteObjectInput
	deleteOut  *s3.DeleteObjectOutput
	headErr    error
	headBucket int
	versioning *s3.GetBucketVersioningOutput
	versions   []*s3.ListObjectVersionsOutput
	listCalls  []*s3.ListObjectVersionsInput
	objects    []*s3.ListObjectsV2Output
	listV2In   []*s3.ListObjectsV2Input
	getIn      *s3.GetObjectInput
	getOut     *s3.GetObjectOutput
	headOut    *s3.HeadObjectOutput
	delTagIn   *s3.DeleteObjectTaggingInput
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	if f.putOut != nil {
		return f.putOut, nil
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.getIn = in
	if f.getOut != nil {
		return f.getOut, nil
	}
	return &s3.GetObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if f.headOut != nil {
		return f.headOut, nil
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.copyIn = in
	if f.copyOut != nil {
		return f.copyOut, nil
	}
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleteIn = in
	if f.deleteOut != nil {
		return f.deleteOut, nil
	}
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) GetObjectTagging(context.Context, *s3.GetObjectTaggingInput, ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error) {
	if f.getTagOut != nil {
		return f.getTagOut, nil
	}
	return &s3.GetObjectTaggingOutput{}, nil
}

func (f *fakeS3) PutObjectTagging(_ context.Context, in *s3.PutObjectTaggingInput, _ ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error) {
	f.tagIn = in
	if f.tagErr != nil {
		return nil, f.tagErr
	}
	return &s3.PutObjectTaggingOutput{}, nil
}

func (f *fakeS3) DeleteObjectTagging(_ context.Context, in *s3.DeleteObjectTaggingInput, _ ...func(*s3.Options)) (*s3.DeleteObjectTaggingOutput, error) {
	f.delTagIn = in
	return &s3.DeleteObjectTaggingOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	cp := *in
	f.listV2In = append(f.listV2In, &cp)
	if len(f.objects) == 0 {
		return &s3.ListObjectsV2Output{}, nil
	}
	out := f.objects[0]
	f.objects = f.objects[1:]
	return out, nil
}

func (f *fakeS3) ListObjectVersions(_ context.Context, in *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	cp := *in
	f.listCalls = append(f.listCalls, &cp)
	if len(f.versions) == 0 {
		return nil, errors.New("unexpected page")
	}
	out := f.versions[0]
	f.versions = f.versions[1:]
	return out, nil
}

func (f *fakeS3) GetBucketVersioning(context.Context, *s3.GetBucketVersioningInput, ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error) {
	if f.versioning != nil {
		return f.versioning, nil
	}
	return &s3.GetBucketVersioningOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.headBucket++
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

type fakeFactory struct {
	client    *fakeS3
	presigner Presigner
	seen      []*Bucket
	err       error
}

func (f *fakeFactory) Client(_ context.Context, b *Bucket) (S3API, error) {
	f.seen = append(f.seen, b)
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func (f *fakeFactory) Presigner(_ context.Context, b *Bucket) (Presigner, error) {
	f.seen = append(f.seen, b)
	if f.err != nil {
		return nil, f.err
	}
	return f.presigner, nil
}

type fakePresigner struct {
	expires []func(*s3.PresignOptions)
}

func (p *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.expires = opts
	return &v4.PresignedHTTPRequest{URL: "https://signed/get/" + *in.Key, Method: "GET"}, nil
}

func (p *fakePresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.expires = opts
	return &v4.PresignedHTTPRequest{URL: "https://signed/put/" + *in.Key, Method: "PUT"}, nil
}

func (p *fakePresigner) PresignHeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return nil, &apiError{code: "ExpiredToken", status: 400}
}

func (p *fakePresigner) PresignDeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://signed/delete/" + *in.Key, Method: "DELETE"}, nil
}
