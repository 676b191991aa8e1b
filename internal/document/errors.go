package document

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrSecurity      = errors.New("security violation")
	ErrValidation    = errors.New("validation failed")
	ErrConfiguration = errors.New("invalid configuration")
)

// Reasons carried by *Error. They are stable and safe to match on.
const (
	ReasonPathTraversal   = "path traversal"
	ReasonSymlink         = "symlink not allowed"
	ReasonUnreadable      = "path not readable"
	ReasonTooLarge        = "file too large"
	ReasonEncoding        = "encoding error"
	ReasonNotMarkdown     = "file must be .md"
	ReasonNotFound        = "file not found"
	ReasonOutsideRoot     = "file outside knowledge base"
	ReasonRootMissing     = "knowledge base directory not found"
	ReasonRootNotDir      = "knowledge base root is not a directory"
	ReasonRootUnspecified = "knowledge base root is required"
)

// Error reports why a path was rejected while loading documents.
type Error struct {
	Kind   error
	Path   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func SecurityError(path, reason string, err error) error {
	return &Error{Kind: ErrSecurity, Path: path, Reason: reason, Err: err}
}

func ValidationError(path, reason string, err error) error {
	return &Error{Kind: ErrValidation, Path: path, Reason: reason, Err: err}
}

func ConfigurationError(path, reason string, err error) error {
	return &Error{Kind: ErrConfiguration, Path: path, Reason: reason, Err: err}
}

// ReasonOf returns the Reason of the first *Error in err's chain, or "".
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
