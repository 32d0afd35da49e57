package models

import "time"

// EventType identifies the lifecycle change a sync event describes
type EventType string

const (
	EventSourceAdded   EventType = "source_added"
	EventSourceUpdated EventType = "source_updated"
	EventSourceRemoved EventType = "source_removed"
	EventSchemaUpdated EventType = "schema_updated"
)

// SourceEnvelope is the stable payload each feature receives for a
// source_added event. It is sufficient to render without calling back into
// the registry synchronously.
type SourceEnvelope struct {
	SourceID     string                `json:"source_id" validate:"required"`
	SourceName   string                `json:"source_name"`
	DataType     string                `json:"data_type"`
	Columns      []ColumnSchema        `json:"columns"`
	SampleRows   []map[string]any      `json:"sample_rows"`
	ModelSummary *SemanticModelSummary `json:"semantic_model_summary,omitempty"`
	Suggestions  []string              `json:"suggestions,omitempty"`
}

// SyncEvent is an ephemeral message consumed exactly once by the
// notification dispatch loop; only its log record outlives dispatch.
type SyncEvent struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	TargetFeature string    `json:"target_feature"`
	Type          EventType `json:"type" validate:"required,oneof=source_added source_updated source_removed schema_updated"`

	SourceID     string                `json:"source_id" validate:"required"`
	Source       *SourceEnvelope       `json:"source,omitempty"`
	ModelSummary *SemanticModelSummary `json:"model_summary,omitempty"`
}

// NotificationLogEntry is one line of the append-only notification log
type NotificationLogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	ID        string         `json:"id"`
	Feature   string         `json:"feature"`
	Type      EventType      `json:"type"`
	Summary   map[string]any `json:"data_summary"`
}

// ProjectionEntry is one feature's denormalized view of a data source,
// keyed by source id and rebuildable from the registry at any time.
type ProjectionEntry struct {
	SourceID     string                `json:"source_id"`
	SourceName   string                `json:"source_name"`
	DataType     string                `json:"data_type"`
	Columns      []ColumnSchema        `json:"columns"`
	SampleRows   []map[string]any      `json:"sample_rows"`
	ModelSummary *SemanticModelSummary `json:"semantic_model,omitempty"`
	Suggestions  []string              `json:"suggestions,omitempty"`
	AddedAt      time.Time             `json:"added_at"`
}
