package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
)

// SyncStamper records a successful delivery against the registry's feature
// mapping. Injected so the notify package never imports the registry.
type SyncStamper func(ctx context.Context, sourceID, feature string) error

// Service dispatches sync events to feature consumers. Each feature owns
// one queue drained by one goroutine, so a feature's handlers see events
// strictly in enqueue order while features progress independently.
type Service struct {
	logger    arbor.ILogger
	validate  *validator.Validate
	log       *Log
	stamper   SyncStamper
	queueSize int

	mu       sync.RWMutex
	handlers map[string][]interfaces.SyncHandler
	queues   map[string]chan models.SyncEvent
	started  bool

	done chan struct{}
	wg   sync.WaitGroup
}

func NewService(logger arbor.ILogger, cfg *common.NotificationsConfig, log *Log) *Service {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	return &Service{
		logger:    logger,
		validate:  validator.New(),
		log:       log,
		queueSize: size,
		handlers:  make(map[string][]interfaces.SyncHandler),
		queues:    make(map[string]chan models.SyncEvent),
		done:      make(chan struct{}),
	}
}

// SetSyncStamper wires the registry callback that stamps last_sync after a
// delivery. Must be called before Start.
func (s *Service) SetSyncStamper(stamper SyncStamper) {
	s.stamper = stamper
}

// RegisterHandler attaches a consumer for one feature's events
func (s *Service) RegisterHandler(feature string, handler interfaces.SyncHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[feature] = append(s.handlers[feature], handler)
}

// Start launches one dispatch loop per known feature
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("notification service already started")
	}

	for _, feature := range models.KnownFeatures {
		ch := make(chan models.SyncEvent, s.queueSize)
		s.queues[feature] = ch
		s.wg.Add(1)
		go s.drain(feature, ch)
	}
	s.started = true
	s.logger.Info().Int("features", len(models.KnownFeatures)).Msg("Notification dispatch started")
	return nil
}

// Stop halts dispatch. Queued but undelivered events are dropped, which is
// the at-most-once contract; consumers recover via manual re-sync.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	s.logger.Info().Msg("Notification dispatch stopped")
}

// Notify enqueues one event for one feature. Fails fast when the feature's
// queue is full rather than blocking the ingestion pipeline.
func (s *Service) Notify(ctx context.Context, feature string, event models.SyncEvent) error {
	if event.ID == "" {
		event.ID = common.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.TargetFeature = feature

	if err := s.validate.Struct(&event); err != nil {
		return fmt.Errorf("invalid sync event: %w", err)
	}

	s.mu.RLock()
	ch, ok := s.queues[feature]
	started := s.started
	s.mu.RUnlock()
	if !started {
		return fmt.Errorf("notification service not started")
	}
	if !ok {
		return fmt.Errorf("unknown feature %q", feature)
	}

	select {
	case ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("notification queue full for feature %s", feature)
	}
}

// NotifyAll enqueues the event for every known feature. Each feature gets
// its own event id so log entries stay distinct.
func (s *Service) NotifyAll(ctx context.Context, event models.SyncEvent) error {
	var firstErr error
	for _, feature := range models.KnownFeatures {
		ev := event
		ev.ID = common.NewEventID()
		if err := s.Notify(ctx, feature, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetHistory returns the most recent dispatched events from the log
func (s *Service) GetHistory(ctx context.Context, limit int) ([]models.NotificationLogEntry, error) {
	return s.log.ReadLast(limit)
}

// CleanupLogs drops log entries older than the threshold
func (s *Service) CleanupLogs(ctx context.Context, days int) error {
	dropped, err := s.log.CleanupOlderThan(days)
	if err != nil {
		return err
	}
	if dropped > 0 {
		s.logger.Info().Int("dropped", dropped).Int("days", days).Msg("Notification log trimmed")
	}
	return nil
}

func (s *Service) drain(feature string, ch chan models.SyncEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case event := <-ch:
			s.dispatch(feature, event)
		}
	}
}

// dispatch delivers one event to the feature's handlers. The log entry is
// written once per dequeue; handler errors are isolated and never retried.
func (s *Service) dispatch(feature string, event models.SyncEvent) {
	ctx := context.Background()

	if err := s.log.Append(logEntry(feature, event)); err != nil {
		s.logger.Warn().Err(err).Str("feature", feature).Msg("Failed to record notification")
	}

	s.mu.RLock()
	handlers := s.handlers[feature]
	s.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			s.logger.Warn().Err(err).
				Str("feature", feature).
				Str("event_id", event.ID).
				Str("source_id", event.SourceID).
				Msg("Sync handler failed")
		}
	}

	if s.stamper != nil && event.Type != models.EventSourceRemoved {
		if err := s.stamper(ctx, event.SourceID, feature); err != nil {
			s.logger.Warn().Err(err).
				Str("feature", feature).
				Str("source_id", event.SourceID).
				Msg("Failed to stamp feature sync")
		}
	}

	s.logger.Debug().
		Str("feature", feature).
		Str("type", string(event.Type)).
		Str("source_id", event.SourceID).
		Msg("Sync event dispatched")
}

func logEntry(feature string, event models.SyncEvent) models.NotificationLogEntry {
	summary := map[string]any{"source_id": event.SourceID}
	if event.Source != nil {
		summary["source_name"] = event.Source.SourceName
		summary["data_type"] = event.Source.DataType
		summary["column_count"] = len(event.Source.Columns)
	}
	return models.NotificationLogEntry{
		Timestamp: event.Timestamp,
		ID:        event.ID,
		Feature:   feature,
		Type:      event.Type,
		Summary:   summary,
	}
}
