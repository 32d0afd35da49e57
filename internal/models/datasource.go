package models

import (
	"time"
)

// SourceKind constants
const (
	SourceKindTabular = "tabular"
	SourceKindText    = "text"
)

// SourceStatus represents the processing lifecycle state of a data source
type SourceStatus string

const (
	StatusPending    SourceStatus = "pending"
	StatusProcessing SourceStatus = "processing"
	StatusCompleted  SourceStatus = "completed"
	StatusFailed     SourceStatus = "failed"
)

// Feature names for the fixed set of downstream consumers
const (
	FeatureConversationalAI = "conversational_ai"
	FeatureQueryBuilder     = "query_builder"
	FeatureDashboardBuilder = "dashboard_builder"
	FeatureAIAssistant      = "ai_assistant"
)

// KnownFeatures lists every downstream feature, in a stable order
var KnownFeatures = []string{
	FeatureConversationalAI,
	FeatureQueryBuilder,
	FeatureDashboardBuilder,
	FeatureAIAssistant,
}

// ColumnType is the inferred semantic type of a column
type ColumnType string

const (
	ColumnTypeInteger  ColumnType = "integer"
	ColumnTypeNumber   ColumnType = "number"
	ColumnTypeString   ColumnType = "string"
	ColumnTypeBoolean  ColumnType = "boolean"
	ColumnTypeDateTime ColumnType = "datetime"
)

// IsNumeric reports whether the column type participates in aggregate metrics
func (t ColumnType) IsNumeric() bool {
	return t == ColumnTypeInteger || t == ColumnTypeNumber
}

// ColumnSchema describes one inferred column of a tabular data source
type ColumnSchema struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

// FeatureSyncState tracks a single feature's consumption of a data source
type FeatureSyncState struct {
	Enabled  bool       `json:"enabled"`
	LastSync *time.Time `json:"last_sync"`
}

// DataSource represents one ingested file and its derived state.
// The registry's persisted snapshot is the system of record for these.
type DataSource struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`

	// Kind is "tabular" or "text", known only after parsing succeeds
	Kind   string       `json:"kind,omitempty"`
	Status SourceStatus `json:"status"`
	Error  string       `json:"error,omitempty"`

	// FileType is the declared upload type (csv, json, txt, pdf)
	FileType string `json:"file_type"`
	FilePath string `json:"file_path"`

	Schema          []ColumnSchema `json:"schema,omitempty"`
	SemanticModelID string         `json:"semantic_model_id,omitempty"`
	RowCount        int            `json:"row_count"`

	// Generation guards against a late-arriving completion resurrecting a
	// source that was unregistered mid-processing
	Generation uint64 `json:"generation"`

	RegisteredAt   time.Time  `json:"registered_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	AccessCount    int        `json:"access_count"`
	ProcessingFrom *time.Time `json:"processing_from,omitempty"`

	// FeatureSync is joined in from the snapshot's feature mappings on read;
	// it is empty until the source first completes and registers
	FeatureSync map[string]FeatureSyncState `json:"feature_sync,omitempty"`
}

// RegistrySnapshot is the single logical document the registry persists.
// Every mutation rewrites the whole snapshot atomically.
type RegistrySnapshot struct {
	Sources         map[string]*DataSource                 `json:"sources"`
	Schemas         map[string][]ColumnSchema              `json:"schemas"`
	FeatureMappings map[string]map[string]FeatureSyncState `json:"feature_mappings"`

	// Generations holds the highest generation handed out per source id;
	// Tombstones holds the generation at which an id was last unregistered
	Generations map[string]uint64 `json:"generations,omitempty"`
	Tombstones  map[string]uint64 `json:"tombstones,omitempty"`

	LastUpdated time.Time `json:"last_updated"`
}

// NewRegistrySnapshot creates an empty snapshot with all maps initialized
func NewRegistrySnapshot() *RegistrySnapshot {
	return &RegistrySnapshot{
		Sources:         make(map[string]*DataSource),
		Schemas:         make(map[string][]ColumnSchema),
		FeatureMappings: make(map[string]map[string]FeatureSyncState),
		Generations:     make(map[string]uint64),
		Tombstones:      make(map[string]uint64),
		LastUpdated:     time.Now().UTC(),
	}
}

// SourceStatusInfo is the integration status view of a single source
type SourceStatusInfo struct {
	Status              SourceStatus                `json:"status"`
	RegisteredAt        time.Time                   `json:"registered_at"`
	LastAccessedAt      time.Time                   `json:"last_accessed_at"`
	AccessCount         int                         `json:"access_count"`
	FeatureIntegrations map[string]FeatureSyncState `json:"feature_integrations"`
}

// RegistryStats aggregates data source usage across features
type RegistryStats struct {
	TotalSources      int            `json:"total_sources"`
	FeatureUsage      map[string]int `json:"feature_usage"`
	SourceKinds       map[string]int `json:"source_kinds"`
	OwnerDistribution map[string]int `json:"owner_distribution"`
}
