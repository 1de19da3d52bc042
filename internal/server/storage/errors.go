package storage

import (
	"errors"

	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/objcatalog/internal/common"
)

// wrapErr converts a provider failure into a StorageError carrying the HTTP
// status and the provider error code when the SDK exposes them.
func wrapErr(op string, b *Bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	se := &common.StorageError{Op: op, Key: key, Cause: err}
	if b != nil {
		se.Bucket = b.Bucket
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		se.Code = apiErr.ErrorCode()
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		se.StatusCode = respErr.HTTPStatusCode()
	}
	return se
}

// IsNotFound reports whether err is a storage 404 or a missing key/bucket.
func IsNotFound(err error) bool {
	var se *common.StorageError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket", "NoSuchVersion":
		return true
	}
	return se.StatusCode == 404
}

func errUnknownBucket(bucketID string) error {
	return &common.NotFoundError{Resource: "bucket", ID: bucketID}
}
