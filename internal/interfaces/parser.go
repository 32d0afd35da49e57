package interfaces

import (
	"context"

	"github.com/Alash95/reporter/internal/models"
)

// FileParser is the upstream collaborator boundary: given a file path and
// declared type it returns a tabular or text payload, or a ParseError for
// unreadable, corrupt, or unsupported input.
type FileParser interface {
	Parse(ctx context.Context, path, fileType string) (*models.ParsedData, error)

	// Supports reports whether the declared type has a registered processor
	Supports(fileType string) bool
}
