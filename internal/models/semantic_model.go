package models

import "time"

// Aggregation kinds supported by derived metrics
const (
	AggregationSum   = "sum"
	AggregationAvg   = "avg"
	AggregationCount = "count"
)

// RowCountMetric is the name of the unconditional model-wide metric
const RowCountMetric = "row_count"

// TableColumn is one column of a semantic model's table definition
type TableColumn struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// TableDef describes the single logical table of a semantic model
type TableDef struct {
	Name    string        `json:"name"`
	Columns []TableColumn `json:"columns"`
}

// Metric is an aggregate over a numeric column (or over all rows for row_count)
type Metric struct {
	Name         string `json:"name"`
	Title        string `json:"title"`
	Aggregation  string `json:"aggregation"`
	TargetColumn string `json:"target_column,omitempty"`
}

// Dimension is a groupable projection over a column
type Dimension struct {
	Name         string     `json:"name"`
	Title        string     `json:"title"`
	SourceColumn string     `json:"source_column"`
	Type         ColumnType `json:"type"`
}

// SemanticModel is derived from an inferred schema. It is immutable once
// created; re-sync regenerates it wholesale, never patches it in place.
type SemanticModel struct {
	ID         string      `json:"id"`
	SourceID   string      `json:"source_id"`
	Table      TableDef    `json:"table"`
	Metrics    []Metric    `json:"metrics"`
	Dimensions []Dimension `json:"dimensions"`
	CreatedAt  time.Time   `json:"created_at"`
}

// SemanticModelSummary is the compact form propagated to feature projections
type SemanticModelSummary struct {
	ModelID        string `json:"model_id"`
	ModelName      string `json:"model_name"`
	MetricCount    int    `json:"metric_count"`
	DimensionCount int    `json:"dimension_count"`
}

// Summary returns the compact propagation form of the model
func (m *SemanticModel) Summary() *SemanticModelSummary {
	if m == nil {
		return nil
	}
	return &SemanticModelSummary{
		ModelID:        m.ID,
		ModelName:      m.Table.Name,
		MetricCount:    len(m.Metrics),
		DimensionCount: len(m.Dimensions),
	}
}
