package interfaces

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a data source, key, or document is unknown
var ErrNotFound = errors.New("not found")

// ErrWriteConflict is returned when the backing store fails to persist a
// mutation; the in-memory and on-disk views remain consistent (no partial
// write) and the caller may retry.
var ErrWriteConflict = errors.New("storage write conflict")

// ErrStaleGeneration is returned when a register carries a generation older
// than the last unregister of the same id. The caller treats it as a no-op.
var ErrStaleGeneration = errors.New("stale source generation")

// ParseError is a terminal ingestion failure: unreadable or corrupt input,
// or an unsupported file type. The source moves to failed.
type ParseError struct {
	FileType string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.FileType, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.FileType, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError creates a ParseError for the given file type
func NewParseError(fileType, reason string, err error) *ParseError {
	return &ParseError{FileType: fileType, Reason: reason, Err: err}
}

// QueryError surfaces the embedded engine's own message for malformed SQL
// or references to columns that do not exist in the loaded data.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
