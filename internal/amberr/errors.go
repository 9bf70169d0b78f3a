// Package amberr defines the closed-set error taxonomy shared across the
// backup core. Components wrap underlying errors with a Kind so callers can
// branch on category (via errors.Is / As) without parsing messages.
package amberr

import (
	"errors"
	"fmt"
)

// Kind is a closed set of error categories. New kinds are added here, never
// invented ad hoc at call sites.
type Kind string

const (
	KindIO               Kind = "io"
	KindRsync            Kind = "rsync"
	KindRclone           Kind = "rclone"
	KindSnapshot         Kind = "snapshot"
	KindJob              Kind = "job"
	KindJobNotFound      Kind = "job_not_found"
	KindFilesystem       Kind = "filesystem"
	KindStore            Kind = "store"
	KindScheduler        Kind = "scheduler"
	KindVolume           Kind = "volume"
	KindIndex            Kind = "index"
	KindSerialization    Kind = "serialization"
	KindDatabase         Kind = "database"
	KindConfig           Kind = "config"
	KindInvalidPath      Kind = "invalid_path"
	KindPermissionDenied Kind = "permission_denied"
	KindCancelled        Kind = "cancelled"
	KindMigration        Kind = "migration"
	KindValidationError  Kind = "validation_error"
	KindNotFound         Kind = "not_found"
)

// Error is the concrete error type carrying a Kind plus context and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that wraps cause, preserving it for errors.Is/As.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err (or any error it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// JobNotFound builds the conventional "job not found" error for jobID.
func JobNotFound(jobID string) *Error {
	return New(KindJobNotFound, fmt.Sprintf("job %q not found", jobID))
}

// InvalidPath builds an InvalidPath error for the given raw path.
func InvalidPath(path string, cause error) *Error {
	return Wrap(KindInvalidPath, fmt.Sprintf("invalid path %q", path), cause)
}

// PermissionDenied builds a PermissionDenied error for the given raw path.
func PermissionDenied(path string) *Error {
	return New(KindPermissionDenied, fmt.Sprintf("path %q is outside all allowed roots", path))
}

// ErrNotFound is the generic sentinel used by CRUD-style repositories (the
// Job Store) where a dedicated Kind per lookup would be noise.
var ErrNotFound = New(KindNotFound, "record not found")
