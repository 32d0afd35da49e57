package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
)

// parseText reads the whole file as UTF-8 text
func (p *Parser) parseText(path string, size int64) (*models.ParsedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, interfaces.NewParseError("txt", "file not readable", err)
	}
	if !utf8.Valid(data) {
		return nil, interfaces.NewParseError("txt", "file is not valid UTF-8 text", nil)
	}

	content := string(data)
	return &models.ParsedData{
		Type:    models.PayloadText,
		Content: content,
		FileInfo: map[string]any{
			"size_bytes": size,
			"line_count": strings.Count(content, "\n") + 1,
		},
	}, nil
}

// parsePDF extracts page content streams with pdfcpu and joins them in
// page order. pdfcpu has no direct text extraction, so the result is the
// raw page content; downstream consumers treat it as plain text.
func (p *Parser) parsePDF(path string, size int64) (*models.ParsedData, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, interfaces.NewParseError("pdf", "failed to read document", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(p.tempDir, "reporter-pdf-")
	if err != nil {
		return nil, interfaces.NewParseError("pdf", "failed to create extraction directory", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return nil, interfaces.NewParseError("pdf", "failed to extract content", err)
	}

	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err != nil {
				continue
			}
		}
		data, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err == nil {
			pageTexts[pageNum] = string(data)
		}
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text, ok := pageTexts[pageNum]
		if !ok {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(text)
	}

	return &models.ParsedData{
		Type:    models.PayloadText,
		Content: builder.String(),
		FileInfo: map[string]any{
			"size_bytes": size,
			"page_count": pageCount,
		},
	}, nil
}
