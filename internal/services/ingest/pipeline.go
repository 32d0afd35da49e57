package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
	"github.com/Alash95/reporter/internal/services/inference"
	"github.com/Alash95/reporter/internal/services/notify"
	"github.com/Alash95/reporter/internal/services/semantics"
)

// workItem is one queued processing run. The generation pins the item to
// the upload it belongs to; a stale item is dropped at dequeue.
type workItem struct {
	sourceID   string
	generation uint64
	eventType  models.EventType
}

// Pipeline drives sources through pending, processing and into a terminal
// state. Parsing, inference and model generation all run inside worker
// goroutines, never on a serving path.
type Pipeline struct {
	logger     arbor.ILogger
	registry   interfaces.SourceRegistry
	parser     interfaces.FileParser
	notifier   interfaces.NotificationService
	sampleRows int
	stuckAfter time.Duration

	queue   chan workItem
	workers int

	mu       sync.Mutex
	inflight map[string]bool
	started  bool

	done chan struct{}
	wg   sync.WaitGroup
}

func NewPipeline(
	logger arbor.ILogger,
	cfg *common.IngestConfig,
	sampleRows int,
	registry interfaces.SourceRegistry,
	parser interfaces.FileParser,
	notifier interfaces.NotificationService,
) *Pipeline {
	workers := cfg.Concurrency
	if workers <= 0 {
		workers = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pipeline{
		logger:     logger,
		registry:   registry,
		parser:     parser,
		notifier:   notifier,
		sampleRows: sampleRows,
		stuckAfter: cfg.StuckThreshold(),
		queue:      make(chan workItem, queueSize),
		workers:    workers,
		inflight:   make(map[string]bool),
		done:       make(chan struct{}),
	}
}

// Start launches the worker pool
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("ingestion pipeline already started")
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.started = true
	p.logger.Info().Int("workers", p.workers).Msg("Ingestion pipeline started")
	return nil
}

// Stop halts the workers. Queued items are abandoned; their sources stay
// pending and can be reprocessed.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
	p.logger.Info().Msg("Ingestion pipeline stopped")
}

// Submit records a new pending source for an uploaded file and queues it
// for processing. Returns immediately; progress is observable via status.
func (p *Pipeline) Submit(ctx context.Context, ownerID, name, filePath, fileType string) (*models.DataSource, error) {
	if !p.parser.Supports(fileType) {
		return nil, interfaces.NewParseError(fileType, "unsupported file type", nil)
	}

	src := &models.DataSource{
		ID:             common.NewSourceID(),
		OwnerID:        ownerID,
		Name:           name,
		Status:         models.StatusPending,
		FileType:       fileType,
		FilePath:       filePath,
		RegisteredAt:   time.Now().UTC(),
		LastAccessedAt: time.Now().UTC(),
	}

	gen, err := p.registry.NextGeneration(ctx, src.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve generation: %w", err)
	}
	src.Generation = gen

	if err := p.registry.SaveSource(ctx, src); err != nil {
		return nil, fmt.Errorf("failed to record pending source: %w", err)
	}

	if err := p.enqueue(workItem{sourceID: src.ID, generation: gen, eventType: models.EventSourceAdded}); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("source_id", src.ID).
		Str("owner_id", ownerID).
		Str("file_type", fileType).
		Msg("Source submitted for ingestion")
	return src, nil
}

// Reprocess re-runs parsing and inference for an existing source under a
// fresh generation
func (p *Pipeline) Reprocess(ctx context.Context, id string) (*models.DataSource, error) {
	src, err := p.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	gen, err := p.registry.NextGeneration(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve generation: %w", err)
	}

	src.Generation = gen
	src.Status = models.StatusPending
	src.Error = ""
	src.ProcessingFrom = nil
	if err := p.registry.SaveSource(ctx, src); err != nil {
		return nil, fmt.Errorf("failed to reset source state: %w", err)
	}

	if err := p.enqueue(workItem{sourceID: id, generation: gen, eventType: models.EventSourceUpdated}); err != nil {
		return nil, err
	}

	p.logger.Info().Str("source_id", id).Int64("generation", int64(gen)).Msg("Source queued for reprocessing")
	return src, nil
}

// Delete unregisters the source, announces the removal to every feature
// and removes the uploaded file
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	src, err := p.registry.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := p.registry.Unregister(ctx, id); err != nil {
		return err
	}

	if err := p.notifier.NotifyAll(ctx, models.SyncEvent{
		Type:     models.EventSourceRemoved,
		SourceID: id,
	}); err != nil {
		p.logger.Warn().Err(err).Str("source_id", id).Msg("Failed to announce source removal")
	}

	if src.FilePath != "" {
		if err := os.Remove(src.FilePath); err != nil && !os.IsNotExist(err) {
			p.logger.Warn().Err(err).Str("source_id", id).Msg("Failed to remove uploaded file")
		}
	}
	return nil
}

// Resync replays source_added to the given features (all known features
// when none are named), rebuilding the envelope from current registry
// state. Used when a consumer missed its at-most-once delivery.
func (p *Pipeline) Resync(ctx context.Context, id string, features []string) error {
	src, err := p.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	if src.Status != models.StatusCompleted {
		return fmt.Errorf("source %s is not completed (status %s)", id, src.Status)
	}

	if len(features) == 0 {
		features = models.KnownFeatures
	}
	known := make(map[string]bool, len(models.KnownFeatures))
	for _, f := range models.KnownFeatures {
		known[f] = true
	}
	for _, f := range features {
		if !known[f] {
			return fmt.Errorf("unknown feature %q", f)
		}
	}

	payload, err := p.registry.GetPayload(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load payload for %s: %w", id, err)
	}

	var summary *models.SemanticModelSummary
	if src.SemanticModelID != "" {
		if model, err := p.registry.GetModel(ctx, src.SemanticModelID); err == nil {
			summary = model.Summary()
		}
	}

	for _, feature := range features {
		event := models.SyncEvent{
			Type:     models.EventSourceAdded,
			SourceID: src.ID,
			Source: &models.SourceEnvelope{
				SourceID:     src.ID,
				SourceName:   src.Name,
				DataType:     src.Kind,
				Columns:      src.Schema,
				SampleRows:   payload.SampleRows(p.sampleRows),
				ModelSummary: summary,
				Suggestions:  notify.BuildSuggestions(feature, src),
			},
			ModelSummary: summary,
		}
		if err := p.notifier.Notify(ctx, feature, event); err != nil {
			return fmt.Errorf("failed to enqueue resync for %s: %w", feature, err)
		}
	}

	p.logger.Info().Str("source_id", id).Int("features", len(features)).Msg("Source resync requested")
	return nil
}

// ResetStuck force-transitions every source that has sat in processing
// longer than the configured threshold back to pending and re-enqueues its
// work under a fresh generation. Stuck processing is a recovery state, not
// a hard error. Returns the number of sources reset.
func (p *Pipeline) ResetStuck(ctx context.Context) (int, error) {
	processing, err := p.registry.ListByStatus(ctx, models.StatusProcessing)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-p.stuckAfter)
	reset := 0
	for _, src := range processing {
		if src.ProcessingFrom != nil && src.ProcessingFrom.After(cutoff) {
			continue
		}

		// A fresh generation supersedes the stalled run, so a zombie worker
		// finishing late cannot overwrite the retried result
		gen, err := p.registry.NextGeneration(ctx, src.ID)
		if err != nil {
			p.logger.Warn().Err(err).Str("source_id", src.ID).Msg("Failed to reset stuck source")
			continue
		}

		src.Generation = gen
		src.Status = models.StatusPending
		src.Error = ""
		src.ProcessingFrom = nil
		if err := p.registry.SaveSource(ctx, src); err != nil {
			p.logger.Warn().Err(err).Str("source_id", src.ID).Msg("Failed to reset stuck source")
			continue
		}

		// First-time ingestions announce as added, retried reprocessing as
		// updated; registration state distinguishes the two
		eventType := models.EventSourceAdded
		if len(src.FeatureSync) > 0 {
			eventType = models.EventSourceUpdated
		}
		if err := p.enqueue(workItem{sourceID: src.ID, generation: gen, eventType: eventType}); err != nil {
			p.logger.Warn().Err(err).Str("source_id", src.ID).Msg("Stuck source reset but not re-queued")
		}

		reset++
		p.logger.Warn().Str("source_id", src.ID).Msg("Stuck source reset to pending")
	}
	return reset, nil
}

func (p *Pipeline) enqueue(item workItem) error {
	select {
	case p.queue <- item:
		return nil
	default:
		return fmt.Errorf("ingestion queue full")
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case item := <-p.queue:
			p.run(item)
		}
	}
}

// run guards against concurrent work on the same source, then processes
// the item. An item that races an in-flight run for its source goes back
// on the queue.
func (p *Pipeline) run(item workItem) {
	p.mu.Lock()
	if p.inflight[item.sourceID] {
		p.mu.Unlock()
		if err := p.enqueue(item); err != nil {
			p.logger.Warn().Str("source_id", item.sourceID).Msg("Dropped ingestion item, queue full")
		}
		return
	}
	p.inflight[item.sourceID] = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.inflight, item.sourceID)
		p.mu.Unlock()
	}()

	p.process(context.Background(), item)
}

func (p *Pipeline) process(ctx context.Context, item workItem) {
	src, err := p.registry.Get(ctx, item.sourceID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			p.logger.Debug().Str("source_id", item.sourceID).Msg("Source deleted before processing")
			return
		}
		p.logger.Error().Err(err).Str("source_id", item.sourceID).Msg("Failed to load source for processing")
		return
	}
	if src.Generation != item.generation {
		p.logger.Debug().
			Str("source_id", item.sourceID).
			Int64("item_generation", int64(item.generation)).
			Int64("source_generation", int64(src.Generation)).
			Msg("Skipping stale ingestion item")
		return
	}

	now := time.Now().UTC()
	src.Status = models.StatusProcessing
	src.ProcessingFrom = &now
	if err := p.registry.SaveSource(ctx, src); err != nil {
		p.logger.Error().Err(err).Str("source_id", src.ID).Msg("Failed to mark source processing")
		return
	}

	parsed, err := p.parser.Parse(ctx, src.FilePath, src.FileType)
	if err != nil {
		p.fail(ctx, src, err)
		return
	}

	if err := p.registry.StorePayload(ctx, src.ID, parsed); err != nil {
		p.fail(ctx, src, fmt.Errorf("failed to store parsed payload: %w", err))
		return
	}

	prevSchema := src.Schema
	var model *models.SemanticModel
	switch parsed.Type {
	case models.PayloadTabular:
		src.Kind = models.SourceKindTabular
		src.Schema = inference.InferSchema(parsed.ColumnNames(), parsed.Rows)
		src.RowCount = parsed.RowCount
		// A prior model describes columns this run may no longer have
		src.SemanticModelID = ""
		// An all-empty table yields an empty schema and no semantic model
		if len(src.Schema) > 0 {
			model = semantics.Generate(src)
			if err := p.registry.StoreModel(ctx, model); err != nil {
				p.fail(ctx, src, fmt.Errorf("failed to store semantic model: %w", err))
				return
			}
			src.SemanticModelID = model.ID
		}
	case models.PayloadText:
		src.Kind = models.SourceKindText
		src.Schema = nil
		src.RowCount = 0
		src.SemanticModelID = ""
	default:
		p.fail(ctx, src, fmt.Errorf("parser returned unknown payload type %q", parsed.Type))
		return
	}

	src.Status = models.StatusCompleted
	src.Error = ""
	src.ProcessingFrom = nil
	src.LastAccessedAt = time.Now().UTC()

	if err := p.registry.Register(ctx, src); err != nil {
		if errors.Is(err, interfaces.ErrStaleGeneration) {
			p.logger.Debug().Str("source_id", src.ID).Msg("Source unregistered during processing, completion discarded")
			return
		}
		p.logger.Error().Err(err).Str("source_id", src.ID).Msg("Failed to register completed source")
		return
	}

	// A reprocessing run that leaves the schema intact only refreshed the
	// semantic model; consumers replace the summary in place instead of
	// rebuilding their whole projection entry
	if item.eventType == models.EventSourceUpdated && model != nil && schemasEqual(prevSchema, src.Schema) {
		p.announceModelRefresh(ctx, src, model)
	} else {
		p.announce(ctx, src, parsed, model, item.eventType)
	}

	p.logger.Info().
		Str("source_id", src.ID).
		Str("kind", src.Kind).
		Int("columns", len(src.Schema)).
		Int("rows", src.RowCount).
		Msg("Source ingestion completed")
}

// fail moves the source to its terminal failed state. The save is best
// effort; a racing unregister leaves nothing to update.
func (p *Pipeline) fail(ctx context.Context, src *models.DataSource, cause error) {
	p.logger.Warn().Err(cause).Str("source_id", src.ID).Msg("Source ingestion failed")

	src.Status = models.StatusFailed
	src.Error = cause.Error()
	src.ProcessingFrom = nil
	if err := p.registry.SaveSource(ctx, src); err != nil {
		p.logger.Error().Err(err).Str("source_id", src.ID).Msg("Failed to record ingestion failure")
	}
}

// announce sends the completion event to every feature, each with its own
// tailored suggestions
func (p *Pipeline) announce(ctx context.Context, src *models.DataSource, parsed *models.ParsedData, model *models.SemanticModel, eventType models.EventType) {
	var summary *models.SemanticModelSummary
	if model != nil {
		summary = model.Summary()
	}

	for _, feature := range models.KnownFeatures {
		envelope := &models.SourceEnvelope{
			SourceID:     src.ID,
			SourceName:   src.Name,
			DataType:     src.Kind,
			Columns:      src.Schema,
			SampleRows:   parsed.SampleRows(p.sampleRows),
			ModelSummary: summary,
			Suggestions:  notify.BuildSuggestions(feature, src),
		}
		event := models.SyncEvent{
			Type:         eventType,
			SourceID:     src.ID,
			Source:       envelope,
			ModelSummary: summary,
		}
		if err := p.notifier.Notify(ctx, feature, event); err != nil {
			p.logger.Warn().Err(err).
				Str("feature", feature).
				Str("source_id", src.ID).
				Msg("Failed to enqueue sync event")
		}
	}
}

// announceModelRefresh sends a summary-only schema_updated event to every
// feature. No envelope travels with it; the projection keeps its existing
// entry and swaps the semantic-model summary.
func (p *Pipeline) announceModelRefresh(ctx context.Context, src *models.DataSource, model *models.SemanticModel) {
	summary := model.Summary()
	for _, feature := range models.KnownFeatures {
		event := models.SyncEvent{
			Type:         models.EventSchemaUpdated,
			SourceID:     src.ID,
			ModelSummary: summary,
		}
		if err := p.notifier.Notify(ctx, feature, event); err != nil {
			p.logger.Warn().Err(err).
				Str("feature", feature).
				Str("source_id", src.ID).
				Msg("Failed to enqueue model refresh event")
		}
	}
}

// schemasEqual reports whether two inferred schemas match column for column
func schemasEqual(a, b []models.ColumnSchema) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
