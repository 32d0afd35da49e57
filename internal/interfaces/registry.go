package interfaces

import (
	"context"

	"github.com/Alash95/reporter/internal/models"
)

// FeatureSyncPatch is merged into a source's per-feature sync state.
// Nil fields are left unchanged; last_sync is always stamped.
type FeatureSyncPatch struct {
	Enabled *bool
}

// SourceRegistry is the single source of truth for which data sources exist
// and which features have consumed them. All mutating operations are
// serialized against the backing store (load, mutate, persist).
type SourceRegistry interface {
	// Register inserts or overwrites a completed DataSource by id and
	// initializes feature sync state for every known feature. Idempotent.
	// Returns ErrStaleGeneration when the source was unregistered after
	// this generation was handed out.
	Register(ctx context.Context, src *models.DataSource) error

	// SaveSource upserts a source record without touching feature mappings;
	// the ingestion pipeline uses it for lifecycle state transitions.
	SaveSource(ctx context.Context, src *models.DataSource) error

	// Unregister removes the source, its schema, feature mappings, payload
	// and semantic model. Idempotent.
	Unregister(ctx context.Context, id string) error

	Get(ctx context.Context, id string) (*models.DataSource, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.DataSource, error)
	ListForFeature(ctx context.Context, feature, ownerID string) ([]*models.DataSource, error)
	ListByStatus(ctx context.Context, status models.SourceStatus) ([]*models.DataSource, error)

	UpdateFeatureSync(ctx context.Context, id, feature string, patch FeatureSyncPatch) error
	TrackAccess(ctx context.Context, id string) error

	// NextGeneration reserves and persists a new generation for the id
	NextGeneration(ctx context.Context, id string) (uint64, error)

	// CleanupInactive removes sources whose last access is older than the
	// threshold in days (missing/unparsable access times are eligible) and
	// returns the number removed.
	CleanupInactive(ctx context.Context, days int) (int, error)

	SourceStatus(ctx context.Context, id string) (*models.SourceStatusInfo, error)
	Statistics(ctx context.Context) (*models.RegistryStats, error)

	// Parsed payload persistence, keyed by source id
	StorePayload(ctx context.Context, id string, payload *models.ParsedData) error
	GetPayload(ctx context.Context, id string) (*models.ParsedData, error)

	// Semantic model persistence, keyed by model id
	StoreModel(ctx context.Context, model *models.SemanticModel) error
	GetModel(ctx context.Context, id string) (*models.SemanticModel, error)
}
