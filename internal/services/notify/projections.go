package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
)

// ProjectionStore keeps one denormalized JSON document per feature so each
// consumer can render its sources without touching the registry. The files
// are a cache: losing one only costs a rebuild.
type ProjectionStore struct {
	dir    string
	logger arbor.ILogger
	mu     sync.Mutex
}

func NewProjectionStore(dir string, logger arbor.ILogger) (*ProjectionStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create projection directory: %w", err)
	}
	return &ProjectionStore{dir: dir, logger: logger}, nil
}

// Handler returns the sync handler that keeps a feature's projection file
// in step with the event stream
func (p *ProjectionStore) Handler(feature string) interfaces.SyncHandler {
	return func(ctx context.Context, event models.SyncEvent) error {
		return p.Apply(feature, event)
	}
}

// Apply folds one event into the feature's projection
func (p *ProjectionStore) Apply(feature string, event models.SyncEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.load(feature)
	if err != nil {
		return err
	}

	switch event.Type {
	case models.EventSourceRemoved:
		delete(entries, event.SourceID)
	case models.EventSchemaUpdated:
		// A summary-only refresh swaps the semantic-model summary in
		// place; a full envelope replaces the entry like any other upsert
		if event.Source == nil {
			entry, ok := entries[event.SourceID]
			if !ok {
				return fmt.Errorf("no projection entry for %s to refresh", event.SourceID)
			}
			entry.ModelSummary = event.ModelSummary
			entries[event.SourceID] = entry
			break
		}
		upsert(entries, event)
	case models.EventSourceAdded, models.EventSourceUpdated:
		if event.Source == nil {
			return fmt.Errorf("event %s for %s carries no source envelope", event.Type, event.SourceID)
		}
		upsert(entries, event)
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}

	return p.save(feature, entries)
}

func upsert(entries map[string]models.ProjectionEntry, event models.SyncEvent) {
	entries[event.SourceID] = models.ProjectionEntry{
		SourceID:     event.Source.SourceID,
		SourceName:   event.Source.SourceName,
		DataType:     event.Source.DataType,
		Columns:      event.Source.Columns,
		SampleRows:   event.Source.SampleRows,
		ModelSummary: event.Source.ModelSummary,
		Suggestions:  event.Source.Suggestions,
		AddedAt:      time.Now().UTC(),
	}
}

// Get returns the feature's current projection keyed by source id
func (p *ProjectionStore) Get(feature string) (map[string]models.ProjectionEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(feature)
}

// Rebuild replaces the feature's projection wholesale. Used by the manual
// re-sync path, which derives entries from the registry.
func (p *ProjectionStore) Rebuild(feature string, entries []models.ProjectionEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	byID := make(map[string]models.ProjectionEntry, len(entries))
	for _, e := range entries {
		byID[e.SourceID] = e
	}
	return p.save(feature, byID)
}

func (p *ProjectionStore) load(feature string) (map[string]models.ProjectionEntry, error) {
	data, err := os.ReadFile(p.path(feature))
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]models.ProjectionEntry), nil
		}
		return nil, fmt.Errorf("failed to read projection for %s: %w", feature, err)
	}

	entries := make(map[string]models.ProjectionEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt projection is rebuilt rather than fatal
		p.logger.Warn().Err(err).Str("feature", feature).Msg("Discarding unreadable projection file")
		return make(map[string]models.ProjectionEntry), nil
	}
	return entries, nil
}

func (p *ProjectionStore) save(feature string, entries map[string]models.ProjectionEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode projection for %s: %w", feature, err)
	}

	tmp, err := os.CreateTemp(p.dir, "."+feature+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp projection: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write projection for %s: %w", feature, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close projection for %s: %w", feature, err)
	}
	if err := os.Rename(tmp.Name(), p.path(feature)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace projection for %s: %w", feature, err)
	}
	return nil
}

func (p *ProjectionStore) path(feature string) string {
	return filepath.Join(p.dir, feature+".json")
}
