package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
)

const (
	snapshotKey   = "registry"
	payloadPrefix = "payload:"
	modelPrefix   = "model:"
)

// Registry persists all source state as one snapshot document. Every
// mutation holds the write lock across the full load-mutate-persist cycle
// so concurrent writers never interleave partial snapshots.
type Registry struct {
	store  interfaces.DocumentStore
	logger arbor.ILogger
	mu     sync.RWMutex
}

// NewRegistry creates a snapshot-backed source registry
func NewRegistry(store interfaces.DocumentStore, logger arbor.ILogger) *Registry {
	return &Registry{
		store:  store,
		logger: logger,
	}
}

// loadSnapshot reads the snapshot document, returning an empty snapshot on
// first use. Missing maps from older snapshots are initialized.
func (r *Registry) loadSnapshot(ctx context.Context) (*models.RegistrySnapshot, error) {
	var snap models.RegistrySnapshot
	if err := r.store.Get(ctx, snapshotKey, &snap); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return models.NewRegistrySnapshot(), nil
		}
		return nil, fmt.Errorf("failed to load registry snapshot: %w", err)
	}
	if snap.Sources == nil {
		snap.Sources = make(map[string]*models.DataSource)
	}
	if snap.Schemas == nil {
		snap.Schemas = make(map[string][]models.ColumnSchema)
	}
	if snap.FeatureMappings == nil {
		snap.FeatureMappings = make(map[string]map[string]models.FeatureSyncState)
	}
	if snap.Generations == nil {
		snap.Generations = make(map[string]uint64)
	}
	if snap.Tombstones == nil {
		snap.Tombstones = make(map[string]uint64)
	}
	return &snap, nil
}

func (r *Registry) persistSnapshot(ctx context.Context, snap *models.RegistrySnapshot) error {
	snap.LastUpdated = time.Now().UTC()
	if err := r.store.Put(ctx, snapshotKey, snap); err != nil {
		return fmt.Errorf("failed to persist registry snapshot: %w", err)
	}
	return nil
}

// mutate runs fn against the current snapshot under the write lock and
// persists the result unless fn reports an error
func (r *Registry) mutate(ctx context.Context, fn func(snap *models.RegistrySnapshot) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	if err := fn(snap); err != nil {
		return err
	}
	return r.persistSnapshot(ctx, snap)
}

// Register records a completed source and initializes feature sync state
// for every known feature. A generation at or below the source's tombstone
// means the source was unregistered while processing; the registration is
// rejected with ErrStaleGeneration.
func (r *Registry) Register(ctx context.Context, src *models.DataSource) error {
	if src == nil || src.ID == "" {
		return fmt.Errorf("cannot register source without an id")
	}

	var staleModelID string
	err := r.mutate(ctx, func(snap *models.RegistrySnapshot) error {
		if tombstone, ok := snap.Tombstones[src.ID]; ok && src.Generation <= tombstone {
			return interfaces.ErrStaleGeneration
		}

		if prev, ok := snap.Sources[src.ID]; ok && prev.SemanticModelID != "" && prev.SemanticModelID != src.SemanticModelID {
			staleModelID = prev.SemanticModelID
		}

		stored := *src
		stored.FeatureSync = nil
		snap.Sources[src.ID] = &stored
		snap.Schemas[src.ID] = src.Schema

		mapping := make(map[string]models.FeatureSyncState, len(models.KnownFeatures))
		for _, feature := range models.KnownFeatures {
			mapping[feature] = models.FeatureSyncState{Enabled: true}
		}
		snap.FeatureMappings[src.ID] = mapping

		if src.Generation > snap.Generations[src.ID] {
			snap.Generations[src.ID] = src.Generation
		}
		return nil
	})
	if err != nil {
		return err
	}

	// The superseded model document has no remaining reference
	if staleModelID != "" {
		if err := r.store.Delete(ctx, modelPrefix+staleModelID); err != nil {
			r.logger.Warn().Err(err).Str("model_id", staleModelID).Msg("Failed to delete superseded semantic model")
		}
	}

	r.logger.Info().
		Str("source_id", src.ID).
		Str("name", src.Name).
		Int("columns", len(src.Schema)).
		Msg("Data source registered")
	return nil
}

// SaveSource upserts the source record only. Feature mappings and schema
// stay untouched so pipeline state transitions cannot clobber them.
func (r *Registry) SaveSource(ctx context.Context, src *models.DataSource) error {
	if src == nil || src.ID == "" {
		return fmt.Errorf("cannot save source without an id")
	}

	return r.mutate(ctx, func(snap *models.RegistrySnapshot) error {
		stored := *src
		stored.FeatureSync = nil
		snap.Sources[src.ID] = &stored
		if src.Generation > snap.Generations[src.ID] {
			snap.Generations[src.ID] = src.Generation
		}
		return nil
	})
}

// Unregister removes every trace of the source and raises its tombstone so
// an in-flight processing run for the same generation cannot re-register it
func (r *Registry) Unregister(ctx context.Context, id string) error {
	var modelID string
	err := r.mutate(ctx, func(snap *models.RegistrySnapshot) error {
		if gen, ok := snap.Generations[id]; ok && gen > snap.Tombstones[id] {
			snap.Tombstones[id] = gen
		}
		if src, ok := snap.Sources[id]; ok {
			modelID = src.SemanticModelID
		}
		delete(snap.Sources, id)
		delete(snap.Schemas, id)
		delete(snap.FeatureMappings, id)
		return nil
	})
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, payloadPrefix+id); err != nil {
		r.logger.Warn().Err(err).Str("source_id", id).Msg("Failed to delete stored payload")
	}
	if modelID != "" {
		if err := r.store.Delete(ctx, modelPrefix+modelID); err != nil {
			r.logger.Warn().Err(err).Str("model_id", modelID).Msg("Failed to delete semantic model")
		}
	}

	r.logger.Info().Str("source_id", id).Msg("Data source unregistered")
	return nil
}

// Get returns a source with its feature sync state joined in
func (r *Registry) Get(ctx context.Context, id string) (*models.DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, err := r.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	src, ok := snap.Sources[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return joinSource(snap, src), nil
}

// ListByOwner returns every source belonging to the owner, newest first
func (r *Registry) ListByOwner(ctx context.Context, ownerID string) ([]*models.DataSource, error) {
	return r.list(ctx, func(src *models.DataSource) bool {
		return src.OwnerID == ownerID
	})
}

// ListForFeature returns the owner's completed sources that the feature has
// enabled
func (r *Registry) ListForFeature(ctx context.Context, feature, ownerID string) ([]*models.DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, err := r.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*models.DataSource, 0)
	for id, src := range snap.Sources {
		if src.OwnerID != ownerID || src.Status != models.StatusCompleted {
			continue
		}
		state, ok := snap.FeatureMappings[id][feature]
		if !ok || !state.Enabled {
			continue
		}
		out = append(out, joinSource(snap, src))
	}
	sortSources(out)
	return out, nil
}

// ListByStatus returns every source currently in the given lifecycle state
func (r *Registry) ListByStatus(ctx context.Context, status models.SourceStatus) ([]*models.DataSource, error) {
	return r.list(ctx, func(src *models.DataSource) bool {
		return src.Status == status
	})
}

func (r *Registry) list(ctx context.Context, keep func(*models.DataSource) bool) ([]*models.DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, err := r.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*models.DataSource, 0)
	for _, src := range snap.Sources {
		if keep(src) {
			out = append(out, joinSource(snap, src))
		}
	}
	sortSources(out)
	return out, nil
}

// UpdateFeatureSync merges the patch into one feature's sync state and
// stamps last_sync
func (r *Registry) UpdateFeatureSync(ctx context.Context, id, feature string, patch interfaces.FeatureSyncPatch) error {
	return r.mutate(ctx, func(snap *models.RegistrySnapshot) error {
		mapping, ok := snap.FeatureMappings[id]
		if !ok {
			return interfaces.ErrNotFound
		}
		state, ok := mapping[feature]
		if !ok {
			return fmt.Errorf("unknown feature %q: %w", feature, interfaces.ErrNotFound)
		}
		if patch.Enabled != nil {
			state.Enabled = *patch.Enabled
		}
		now := time.Now().UTC()
		state.LastSync = &now
		mapping[feature] = state
		return nil
	})
}

// TrackAccess bumps the access counter and timestamp for usage-based cleanup
func (r *Registry) TrackAccess(ctx context.Context, id string) error {
	return r.mutate(ctx, func(snap *models.RegistrySnapshot) error {
		src, ok := snap.Sources[id]
		if !ok {
			return interfaces.ErrNotFound
		}
		src.AccessCount++
		src.LastAccessedAt = time.Now().UTC()
		return nil
	})
}

// NextGeneration reserves a fresh generation for the id. The value is
// persisted before it is handed out so a crash cannot reissue it.
func (r *Registry) NextGeneration(ctx context.Context, id string) (uint64, error) {
	var gen uint64
	err := r.mutate(ctx, func(snap *models.RegistrySnapshot) error {
		gen = snap.Generations[id] + 1
		if tombstone := snap.Tombstones[id]; gen <= tombstone {
			gen = tombstone + 1
		}
		snap.Generations[id] = gen
		return nil
	})
	return gen, err
}

// CleanupInactive removes sources not accessed within the threshold. A
// zero LastAccessedAt counts as inactive.
func (r *Registry) CleanupInactive(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	removed := make([]string, 0)
	removedModels := make([]string, 0)
	err := r.mutate(ctx, func(snap *models.RegistrySnapshot) error {
		for id, src := range snap.Sources {
			if src.LastAccessedAt.Before(cutoff) {
				if gen, ok := snap.Generations[id]; ok && gen > snap.Tombstones[id] {
					snap.Tombstones[id] = gen
				}
				if src.SemanticModelID != "" {
					removedModels = append(removedModels, src.SemanticModelID)
				}
				delete(snap.Sources, id)
				delete(snap.Schemas, id)
				delete(snap.FeatureMappings, id)
				removed = append(removed, id)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range removed {
		if err := r.store.Delete(ctx, payloadPrefix+id); err != nil {
			r.logger.Warn().Err(err).Str("source_id", id).Msg("Failed to delete stored payload")
		}
	}
	for _, modelID := range removedModels {
		if err := r.store.Delete(ctx, modelPrefix+modelID); err != nil {
			r.logger.Warn().Err(err).Str("model_id", modelID).Msg("Failed to delete semantic model")
		}
	}
	if len(removed) > 0 {
		r.logger.Info().Int("removed", len(removed)).Int("days", days).Msg("Inactive sources cleaned up")
	}
	return len(removed), nil
}

// SourceStatus returns the integration status view of a single source
func (r *Registry) SourceStatus(ctx context.Context, id string) (*models.SourceStatusInfo, error) {
	src, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.SourceStatusInfo{
		Status:              src.Status,
		RegisteredAt:        src.RegisteredAt,
		LastAccessedAt:      src.LastAccessedAt,
		AccessCount:         src.AccessCount,
		FeatureIntegrations: src.FeatureSync,
	}, nil
}

// Statistics aggregates counts across the whole registry
func (r *Registry) Statistics(ctx context.Context) (*models.RegistryStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, err := r.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.RegistryStats{
		TotalSources:      len(snap.Sources),
		FeatureUsage:      make(map[string]int),
		SourceKinds:       make(map[string]int),
		OwnerDistribution: make(map[string]int),
	}
	for _, feature := range models.KnownFeatures {
		stats.FeatureUsage[feature] = 0
	}
	for id, src := range snap.Sources {
		if src.Kind != "" {
			stats.SourceKinds[src.Kind]++
		}
		stats.OwnerDistribution[src.OwnerID]++
		for feature, state := range snap.FeatureMappings[id] {
			if state.Enabled {
				stats.FeatureUsage[feature]++
			}
		}
	}
	return stats, nil
}

// StorePayload persists the parsed payload outside the snapshot so the
// registry document stays small
func (r *Registry) StorePayload(ctx context.Context, id string, payload *models.ParsedData) error {
	if err := r.store.Put(ctx, payloadPrefix+id, payload); err != nil {
		return fmt.Errorf("failed to store payload for %s: %w", id, err)
	}
	return nil
}

func (r *Registry) GetPayload(ctx context.Context, id string) (*models.ParsedData, error) {
	var payload models.ParsedData
	if err := r.store.Get(ctx, payloadPrefix+id, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// StoreModel persists a semantic model keyed by its own id
func (r *Registry) StoreModel(ctx context.Context, model *models.SemanticModel) error {
	if model == nil || model.ID == "" {
		return fmt.Errorf("cannot store semantic model without an id")
	}
	if err := r.store.Put(ctx, modelPrefix+model.ID, model); err != nil {
		return fmt.Errorf("failed to store semantic model %s: %w", model.ID, err)
	}
	return nil
}

func (r *Registry) GetModel(ctx context.Context, id string) (*models.SemanticModel, error) {
	var model models.SemanticModel
	if err := r.store.Get(ctx, modelPrefix+id, &model); err != nil {
		return nil, err
	}
	return &model, nil
}

// joinSource copies the stored record and attaches its feature sync state
func joinSource(snap *models.RegistrySnapshot, src *models.DataSource) *models.DataSource {
	out := *src
	if mapping, ok := snap.FeatureMappings[src.ID]; ok {
		out.FeatureSync = make(map[string]models.FeatureSyncState, len(mapping))
		for feature, state := range mapping {
			out.FeatureSync[feature] = state
		}
	}
	if schema, ok := snap.Schemas[src.ID]; ok && len(out.Schema) == 0 {
		out.Schema = schema
	}
	return &out
}

func sortSources(sources []*models.DataSource) {
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].RegisteredAt.Equal(sources[j].RegisteredAt) {
			return sources[i].ID < sources[j].ID
		}
		return sources[i].RegisteredAt.After(sources[j].RegisteredAt)
	})
}
