// Package errors provides structured error types for taskvault.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for taskvault.
const (
	CodeProjectNotFound Code = "PROJECT_NOT_FOUND"
	CodeEpicNotFound    Code = "EPIC_NOT_FOUND"
	CodeArchiveNotFound Code = "ARCHIVE_NOT_FOUND"
	CodeInvalidRequest  Code = "INVALID_REQUEST"
	CodeImportInvalid   Code = "IMPORT_INVALID"
	CodeRemoteFailed    Code = "REMOTE_FAILED"
	CodeStoreFailed     Code = "STORE_FAILED"
	CodeConfigInvalid   Code = "CONFIG_INVALID"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryConflict
	CategoryInternal
	CategoryUnavailable
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeProjectNotFound: CategoryNotFound,
	CodeEpicNotFound:    CategoryNotFound,
	CodeArchiveNotFound: CategoryNotFound,
	CodeInvalidRequest:  CategoryBadRequest,
	CodeImportInvalid:   CategoryBadRequest,
	CodeRemoteFailed:    CategoryUnavailable,
	CodeStoreFailed:     CategoryInternal,
	CodeConfigInvalid:   CategoryBadRequest,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryConflict:
		return 409
	case CategoryUnavailable:
		return 503
	default:
		return 500
	}
}

// VaultError is the structured error type for taskvault.
type VaultError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *VaultError) Unwrap() error {
	return e.Cause
}

// Category returns the error category for HTTP status mapping.
func (e *VaultError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *VaultError) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *VaultError) MarshalJSON() ([]byte, error) {
	type alias VaultError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a VaultError with the same code.
func (e *VaultError) Is(target error) bool {
	t, ok := target.(*VaultError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *VaultError) WithCause(err error) *VaultError {
	return &VaultError{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// --- Error constructors ---

// ErrProjectNotFound returns an error when a project doesn't exist.
func ErrProjectNotFound(id string) *VaultError {
	return &VaultError{
		Code: CodeProjectNotFound,
		What: fmt.Sprintf("project %s not found", id),
		Why:  "No project with this ID is registered",
		Fix:  "Check the project ID, or create the project first",
	}
}

// ErrEpicNotFound returns an error when an epic doesn't exist.
func ErrEpicNotFound(id string) *VaultError {
	return &VaultError{
		Code: CodeEpicNotFound,
		What: fmt.Sprintf("epic %s not found", id),
		Why:  "No epic with this ID exists in the project",
		Fix:  "Run 'taskvault epics list' to see available epics",
	}
}

// ErrArchiveNotFound returns an error when an archive snapshot doesn't exist.
func ErrArchiveNotFound(id string) *VaultError {
	return &VaultError{
		Code: CodeArchiveNotFound,
		What: fmt.Sprintf("archive %s not found", id),
		Why:  "No archived task list with this ID exists",
		Fix:  "Run 'taskvault archives list' to see available archives",
	}
}

// ErrInvalidRequest returns an error for a malformed request.
func ErrInvalidRequest(reason string) *VaultError {
	return &VaultError{
		Code: CodeInvalidRequest,
		What: "invalid request",
		Why:  reason,
	}
}

// ErrImportInvalid returns an error for a bad import payload or mode.
func ErrImportInvalid(reason string) *VaultError {
	return &VaultError{
		Code: CodeImportInvalid,
		What: "import rejected",
		Why:  reason,
		Fix:  "Check the archive payload and use mode 'append' or 'replace'",
	}
}

// ErrRemoteFailed returns an error when the remote archive API is unreachable.
func ErrRemoteFailed(op string, cause error) *VaultError {
	return &VaultError{
		Code:  CodeRemoteFailed,
		What:  fmt.Sprintf("remote %s failed", op),
		Why:   "The archive service did not accept the request",
		Fix:   "Check that the taskvault daemon is running and reachable",
		Cause: cause,
	}
}

// ErrStoreFailed returns an error for a storage-layer failure.
func ErrStoreFailed(op string, cause error) *VaultError {
	return &VaultError{
		Code:  CodeStoreFailed,
		What:  fmt.Sprintf("storage %s failed", op),
		Cause: cause,
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *VaultError {
	return &VaultError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check .taskvault/config.yaml and fix the invalid field",
	}
}

// AsVaultError attempts to convert an error to a VaultError.
// Returns nil if the error is not a VaultError.
func AsVaultError(err error) *VaultError {
	for err != nil {
		if ve, ok := err.(*VaultError); ok {
			return ve
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = unwrapper.Unwrap()
	}
	return nil
}

// Wrap wraps a generic error into a VaultError with unknown code.
func Wrap(err error, what string) *VaultError {
	return &VaultError{
		Code:  Code("UNKNOWN"),
		What:  what,
		Cause: err,
	}
}
