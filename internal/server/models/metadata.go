package models

// Metadata is a deduplicated key/value pair. A row is shared by every version
// that carries the same pair.
type Metadata struct {
	ID    int64
	Key   string
	Value string
}

// VersionMetadata joins a version to one metadata row.
type VersionMetadata struct {
	VersionID  string
	MetadataID int64
	Key        string
	Value      string
	CreatedBy  string
}

// Tag is an S3 object tag. Tags are never stored relationally.
type Tag struct {
	Key   string
	Value string
}
