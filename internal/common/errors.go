// Package common defines the error taxonomy shared by the catalog layers.
// Callers should use errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Validation errors.
	ErrorValidation = errors.New("validation error")

	// Storage errors.
	ErrorStorage = errors.New("storage error")

	// Transaction lifecycle errors.
	ErrorTransaction = errors.New("transaction error")

	// Upload stored the content but failed to apply its tags.
	ErrorPartialUpload = errors.New("partial upload")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// ValidationError reports malformed or ambiguous caller input.
type ValidationError struct {
	Op     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: invalid %s: %s", e.Op, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrorValidation }

// NewValidationError is a shorthand used by services.
func NewValidationError(op, field, reason string) *ValidationError {
	return &ValidationError{Op: op, Field: field, Reason: reason}
}

// NotFoundError reports a catalog lookup miss.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrorNotFound }

// StorageError wraps a failed call against the object store. StatusCode is the
// provider HTTP status when one was returned, zero otherwise.
type StorageError struct {
	Op         string
	Bucket     string
	Key        string
	StatusCode int
	Code       string
	Cause      error
}

func (e *StorageError) Error() string {
	msg := fmt.Sprintf("storage %s failed (bucket=%s", e.Op, e.Bucket)
	if e.Key != "" {
		msg += ", key=" + e.Key
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status=%d", e.StatusCode)
	}
	msg += ")"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() error { return e.Cause }

func (e *StorageError) Is(target error) bool { return target == ErrorStorage }

// TransactionError reports a begin/commit/rollback failure. It is always fatal
// to the current operation.
type TransactionError struct {
	Op    string
	Cause error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Op, e.Cause)
}

func (e *TransactionError) Unwrap() error { return e.Cause }

func (e *TransactionError) Is(target error) bool { return target == ErrorTransaction }

// PartialUploadError is returned together with a valid upload result when the
// object body was written but the follow-up tagging call failed. Callers may
// retry tagging only, or compensate by deleting the written version.
type PartialUploadError struct {
	Bucket    string
	Key       string
	VersionID string
	Cause     error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("object %s/%s stored but tagging failed: %v", e.Bucket, e.Key, e.Cause)
}

func (e *PartialUploadError) Unwrap() error { return e.Cause }

func (e *PartialUploadError) Is(target error) bool { return target == ErrorPartialUpload }
