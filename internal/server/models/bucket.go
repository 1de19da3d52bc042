package models

import "time"

// Bucket is a registered S3 bucket. SecretAccessKey holds the sealed form
// when read from the database.
type Bucket struct {
	BucketID        string
	BucketName      string
	Bucket          string
	Endpoint        string
	Key             string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Active          bool
	CreatedBy       string
	CreatedAt       time.Time
}
