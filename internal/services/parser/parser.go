package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
)

// supported maps declared file types to their parse functions
var supported = map[string]bool{
	"csv":  true,
	"json": true,
	"txt":  true,
	"pdf":  true,
}

// Parser turns uploaded files into tabular or text payloads. It is
// stateless apart from its size limit; each Parse call is independent.
type Parser struct {
	logger      arbor.ILogger
	maxFileSize int64
	tempDir     string
}

var _ interfaces.FileParser = (*Parser)(nil)

func NewParser(logger arbor.ILogger, maxFileSize int64) *Parser {
	tempDir := os.TempDir()
	return &Parser{
		logger:      logger,
		maxFileSize: maxFileSize,
		tempDir:     tempDir,
	}
}

// Supports reports whether the declared file type has a parser
func (p *Parser) Supports(fileType string) bool {
	return supported[strings.ToLower(fileType)]
}

// Parse reads the file at path according to its declared type. The file's
// extension is ignored; the caller's declared type wins.
func (p *Parser) Parse(ctx context.Context, path, fileType string) (*models.ParsedData, error) {
	fileType = strings.ToLower(fileType)
	if !p.Supports(fileType) {
		return nil, interfaces.NewParseError(fileType, "unsupported file type", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, interfaces.NewParseError(fileType, "file not readable", err)
	}
	if p.maxFileSize > 0 && info.Size() > p.maxFileSize {
		return nil, interfaces.NewParseError(fileType,
			fmt.Sprintf("file exceeds size limit of %d bytes", p.maxFileSize), nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var parsed *models.ParsedData
	switch fileType {
	case "csv":
		parsed, err = p.parseCSV(path)
	case "json":
		parsed, err = p.parseJSON(path)
	case "txt":
		parsed, err = p.parseText(path, info.Size())
	case "pdf":
		parsed, err = p.parsePDF(path, info.Size())
	}
	if err != nil {
		return nil, err
	}

	p.logger.Debug().
		Str("file_type", fileType).
		Str("payload_type", parsed.Type).
		Int("rows", parsed.RowCount).
		Msg("File parsed")
	return parsed, nil
}
