// Package common defines shared constants, sentinel errors and typed errors
// used across csvkeeper client and server layers. Callers should use
// errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrSweepInProgress = errors.New("retention sweep already running")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// FormatError reports malformed or disallowed input during ingestion.
// It is user-correctable.
type FormatError struct {
	Line    int // 1-based line number, 0 when not line specific
	Message string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("format error: line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("format error: %s", e.Message)
}

func (e *FormatError) Unwrap() error { return e.Err }

// CryptoError reports invalid key material or a failed decryption
// (length, MAC or padding). It means corruption and must not be retried.
type CryptoError struct {
	Op      string // "encrypt", "decrypt", "wrap", "unwrap"
	Message string
	Err     error
}

func (e *CryptoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Op, e.Message)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// NotFoundError reports a missing file record. It matches ErrorNotFound.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("file %q not found", e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrorNotFound }

// BlobMissingError reports a metadata record whose blob is gone.
// This is an integrity violation, distinct from an ordinary not-found.
type BlobMissingError struct {
	ID      string
	Locator string
}

func (e *BlobMissingError) Error() string {
	return fmt.Sprintf("blob %q for file %q is missing", e.Locator, e.ID)
}

// CorruptRecordError reports a record whose stored key or iv has an invalid shape.
type CorruptRecordError struct {
	ID     string
	Reason string
	Err    error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("file %q has a corrupt record: %s", e.ID, e.Reason)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

// StoreError wraps a failure of the metadata or blob store.
type StoreError struct {
	Store string // "metadata" or "blob"
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ScheduledTaskError reports the failure of one candidate in a retention sweep.
// It never aborts the sweep.
type ScheduledTaskError struct {
	RecordID string
	Step     string // "delete_blob", "delete_metadata", "notify"
	Err      error
}

func (e *ScheduledTaskError) Error() string {
	return fmt.Sprintf("retention %s for %q: %v", e.Step, e.RecordID, e.Err)
}

func (e *ScheduledTaskError) Unwrap() error { return e.Err }
