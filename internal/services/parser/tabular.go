package parser

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
	"github.com/Alash95/reporter/internal/services/inference"
)

// parseCSV reads a header row plus data rows. Headers are normalized so
// blank and duplicate names cannot collide; short rows pad with empty
// strings and long rows drop the overflow.
func (p *Parser) parseCSV(path string) (*models.ParsedData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, interfaces.NewParseError("csv", "file not readable", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, interfaces.NewParseError("csv", "empty file", nil)
	}
	if err != nil {
		return nil, interfaces.NewParseError("csv", "malformed header row", err)
	}

	columns := inference.NormalizeHeaders(header)

	rows := make([]map[string]any, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, interfaces.NewParseError("csv", "malformed data row", err)
		}
		row := make(map[string]any, len(columns))
		for i, name := range columns {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	return tabularPayload(columns, rows), nil
}

// parseJSON accepts an array of flat objects or a single object. Nested
// values are flattened to their JSON encoding so rows stay rectangular.
func (p *Parser) parseJSON(path string) (*models.ParsedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, interfaces.NewParseError("json", "file not readable", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		var single map[string]any
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, interfaces.NewParseError("json", "expected an object or an array of objects", err)
		}
		records = []map[string]any{single}
	}

	// Column order is first-seen across records; keys introduced by the
	// same record sort alphabetically since map iteration order is random
	var columns []string
	seen := make(map[string]bool)
	for _, rec := range records {
		var newKeys []string
		for key := range rec {
			if !seen[key] {
				seen[key] = true
				newKeys = append(newKeys, key)
			}
		}
		sort.Strings(newKeys)
		columns = append(columns, newKeys...)
	}

	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := make(map[string]any, len(columns))
		for _, name := range columns {
			row[name] = flattenValue(rec[name])
		}
		rows = append(rows, row)
	}

	return tabularPayload(columns, rows), nil
}

func flattenValue(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return v
	}
}

func tabularPayload(columns []string, rows []map[string]any) *models.ParsedData {
	cols := make([]models.ParsedColumn, len(columns))
	for i, name := range columns {
		cols[i] = models.ParsedColumn{Name: name}
	}
	return &models.ParsedData{
		Type:        models.PayloadTabular,
		Columns:     cols,
		Rows:        rows,
		RowCount:    len(rows),
		ColumnCount: len(columns),
	}
}
