package models

import "io"

// Request shapes passed from the (external) request layer into services.
// Each field lists its contract; validation of shape happens upstream.

// CreateObjectRequest describes a new object and its initial version.
//
//	BucketID     optional; empty selects the default bucket
//	Path         required; key relative to the bucket prefix
//	Name         optional display name
//	MimeType     required
//	S3VersionID  optional; set when the upload produced a version id
//	Public       optional, default false
//	Metadata     optional; nil skips association, empty dissociates
type CreateObjectRequest struct {
	BucketID     string
	Path         string
	Name         string
	MimeType     string
	OriginalName string
	S3VersionID  string
	ETag         string
	Public       bool
	Metadata     []Metadata
}

// CreateVersionRequest records a content revision of an existing object.
//
//	S3VersionID  optional; empty on buckets without versioning
//	MimeType     required
//	Metadata     optional; nil keeps the current metadata untouched
type CreateVersionRequest struct {
	S3VersionID  string
	MimeType     string
	OriginalName string
	ETag         string
	Metadata     []Metadata
}

// UploadRequest writes new content for an existing object.
//
//	Body         required
//	ContentType  required
//	Metadata     optional; nil keeps the version's metadata untouched
//	Tags         optional; applied by a separate tagging call
type UploadRequest struct {
	Body          io.Reader
	ContentLength int64
	ContentType   string
	OriginalName  string
	Metadata      []Metadata
	Tags          []Tag
}

// CopyObjectRequest copies one version of an object to a new path in the
// same bucket.
//
//	SourceVersionID  optional; empty copies the current version
//	Path             required; destination key
//	ReplaceMetadata  false keeps the source version's metadata; true sends
//	                 exactly Metadata, which must then be non-nil
//	ReplaceTags      false keeps the source's tags; true sends exactly Tags,
//	                 which must then be non-nil
type CopyObjectRequest struct {
	SourceVersionID string
	Path            string
	Name            string
	ReplaceMetadata bool
	Metadata        []Metadata
	ReplaceTags     bool
	Tags            []Tag
}

// ObjectFilter narrows SearchObjects. Zero values mean "no constraint".
//
//	IDs        exact object ids
//	BucketIDs  exact bucket ids
//	Path       substring match
//	Public     tri-state
//	Active     tri-state; nil defaults to active only
//	Limit      0 means unlimited
type ObjectFilter struct {
	IDs       []string
	BucketIDs []string
	Path      string
	Public    *bool
	Active    *bool
	Limit     int
	Offset    int
}

// PermissionFilter narrows SearchPermissions.
//
//	ObjectPerms  true: object-scoped grants, requires exactly one UserID
//	             false: bucket-scoped grants
type PermissionFilter struct {
	UserIDs     []string
	ObjectIDs   []string
	BucketIDs   []string
	Codes       []PermissionCode
	ObjectPerms bool
}

// UserFilter narrows SearchUsers.
type UserFilter struct {
	UserIDs     []string
	IdentityIDs []string
	IDP         string
	Username    string
	Email       string
	Active      *bool
}

// CreateBucketRequest registers a bucket. SecretAccessKey is plaintext here.
type CreateBucketRequest struct {
	BucketName      string
	Bucket          string
	Endpoint        string
	Key             string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}
