package resource

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors surfaced by the engine.
type ErrorCode string

const (
	// CodeNotFound indicates the resource or revision does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeResourceIsDeleted indicates a live view was requested of a
	// soft-deleted resource.
	CodeResourceIsDeleted ErrorCode = "RESOURCE_IS_DELETED"

	// CodeConflict indicates a lost compare-and-swap or an id collision.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeValidation indicates a payload failed validation.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeInvalidState indicates the operation is illegal for the current
	// revision status or call context.
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// CodeMigrationPath indicates no migration path exists between versions.
	CodeMigrationPath ErrorCode = "MIGRATION_PATH"

	// CodeConfiguration indicates a bad registration-time declaration.
	CodeConfiguration ErrorCode = "CONFIGURATION"
)

// Error is the error type returned for every domain failure.
//
// Errors compare equal under errors.Is when their codes match, so callers
// can write errors.Is(err, resource.ErrConflict).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Model is the registered resource type name, when known.
	Model string

	// ResourceID identifies the affected resource, when known.
	ResourceID string

	// RevisionID identifies the affected revision, when known.
	RevisionID string

	// Err is the underlying cause.
	Err error
}

// Sentinels for errors.Is.
var (
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrResourceIsDeleted = &Error{Code: CodeResourceIsDeleted}
	ErrConflict          = &Error{Code: CodeConflict}
	ErrValidation        = &Error{Code: CodeValidation}
	ErrInvalidState      = &Error{Code: CodeInvalidState}
	ErrMigrationPath     = &Error{Code: CodeMigrationPath}
	ErrConfiguration     = &Error{Code: CodeConfiguration}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	switch {
	case e.ResourceID != "" && e.RevisionID != "":
		msg = fmt.Sprintf("%s (model=%s, id=%s, revision=%s)", msg, e.Model, e.ResourceID, e.RevisionID)
	case e.ResourceID != "":
		msg = fmt.Sprintf("%s (model=%s, id=%s)", msg, e.Model, e.ResourceID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func hasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsResourceIsDeleted reports whether err is a RESOURCE_IS_DELETED error.
func IsResourceIsDeleted(err error) bool { return hasCode(err, CodeResourceIsDeleted) }

// IsConflict reports whether err is a CONFLICT error.
func IsConflict(err error) bool { return hasCode(err, CodeConflict) }

// IsValidation reports whether err is a VALIDATION error.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// IsInvalidState reports whether err is an INVALID_STATE error.
func IsInvalidState(err error) bool { return hasCode(err, CodeInvalidState) }

// IsMigrationPath reports whether err is a MIGRATION_PATH error.
func IsMigrationPath(err error) bool { return hasCode(err, CodeMigrationPath) }

// IsConfiguration reports whether err is a CONFIGURATION error.
func IsConfiguration(err error) bool { return hasCode(err, CodeConfiguration) }

// NotFound creates a NOT_FOUND error for a resource.
func NotFound(model, id string) *Error {
	return &Error{Code: CodeNotFound, Message: "resource not found", Model: model, ResourceID: id}
}

// RevisionNotFound creates a NOT_FOUND error for a revision.
func RevisionNotFound(model, id, revisionID string) *Error {
	return &Error{Code: CodeNotFound, Message: "revision not found", Model: model, ResourceID: id, RevisionID: revisionID}
}

// BlobNotFound creates a NOT_FOUND error for an offloaded binary. Blob ids
// are shared across models, so no resource is named.
func BlobNotFound(blobID string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("blob %s not found", blobID)}
}

// Deleted creates a RESOURCE_IS_DELETED error.
func Deleted(model, id string) *Error {
	return &Error{Code: CodeResourceIsDeleted, Message: "resource is deleted", Model: model, ResourceID: id}
}

// Conflict creates a CONFLICT error.
func Conflict(model, id, format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...), Model: model, ResourceID: id}
}

// Validation creates a VALIDATION error wrapping cause.
func Validation(model string, cause error) *Error {
	return &Error{Code: CodeValidation, Message: "payload failed validation", Model: model, Err: cause}
}

// InvalidState creates an INVALID_STATE error.
func InvalidState(model, id, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...), Model: model, ResourceID: id}
}

// MigrationPath creates a MIGRATION_PATH error.
func MigrationPath(from, to string) *Error {
	return &Error{Code: CodeMigrationPath, Message: fmt.Sprintf("no migration path from %q to %q", from, to)}
}

// Configuration creates a CONFIGURATION error.
func Configuration(format string, args ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}
