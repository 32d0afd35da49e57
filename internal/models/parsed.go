package models

// Parsed payload types returned by the file parsing collaborator
const (
	PayloadTabular = "tabular"
	PayloadText    = "text"
)

// ParsedColumn is a raw column as reported by the parser, before inference
type ParsedColumn struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// ParsedData is the upstream collaborator contract: either a tabular payload
// (columns + rows) or a text payload (content + file info).
type ParsedData struct {
	Type string `json:"type" validate:"required,oneof=tabular text"`

	// Tabular payload
	Columns     []ParsedColumn   `json:"columns,omitempty"`
	Rows        []map[string]any `json:"rows,omitempty"`
	RowCount    int              `json:"row_count,omitempty"`
	ColumnCount int              `json:"column_count,omitempty"`

	// Text payload
	Content  string         `json:"content,omitempty"`
	FileInfo map[string]any `json:"file_info,omitempty"`
}

// ColumnNames returns the ordered column names of a tabular payload
func (p *ParsedData) ColumnNames() []string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	return names
}

// SampleRows returns up to limit rows for propagation to features
func (p *ParsedData) SampleRows(limit int) []map[string]any {
	if limit <= 0 || len(p.Rows) <= limit {
		return p.Rows
	}
	return p.Rows[:limit]
}
