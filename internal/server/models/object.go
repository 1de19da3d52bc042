// Package models defines the catalog records persisted in the database and
// the typed request/filter structs passed between layers.
package models

import "time"

// Object is the stable identity of a stored item. Its storage key and
// versions may change; its ID does not.
type Object struct {
	ID string
	// BucketID is empty when the object lives in the default bucket.
	BucketID  string
	Path      string
	Name      string
	Public    bool
	Active    bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedBy string
	UpdatedAt time.Time
}

// Version is one content revision of an Object. S3VersionID is empty for
// buckets without versioning.
type Version struct {
	ID           string
	ObjectID     string
	S3VersionID  string
	MimeType     string
	OriginalName string
	ETag         string
	DeleteMarker bool
	// Seq is a monotonic insertion counter used to break CreatedAt ties.
	Seq       int64
	CreatedBy string
	CreatedAt time.Time
	UpdatedBy string
	UpdatedAt time.Time
}

// ObjectWithVersion is the flat projection of an object joined to its
// current (latest non-delete-marker) version. Version is nil when the object
// has no content version.
type ObjectWithVersion struct {
	Object   *Object
	Version  *Version
	Metadata []Metadata
}
