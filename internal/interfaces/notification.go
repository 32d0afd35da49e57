package interfaces

import (
	"context"

	"github.com/Alash95/reporter/internal/models"
)

// SyncHandler consumes sync events for one feature, in enqueue order.
// A handler error is logged and isolated; it never blocks dispatch.
type SyncHandler func(ctx context.Context, event models.SyncEvent) error

// NotificationService fans sync events out to feature consumers. Delivery is
// at-most-once: a feature that misses an event recovers via manual re-sync.
type NotificationService interface {
	// Notify enqueues an event addressed to one feature
	Notify(ctx context.Context, feature string, event models.SyncEvent) error

	// NotifyAll enqueues the event addressed to every known feature
	NotifyAll(ctx context.Context, event models.SyncEvent) error

	// RegisterHandler attaches a consumer invoked for every event addressed
	// to the feature. Handlers for one feature never run concurrently with
	// themselves; different features drain concurrently.
	RegisterHandler(feature string, handler SyncHandler)

	// GetHistory returns the most recent limit dispatched events
	GetHistory(ctx context.Context, limit int) ([]models.NotificationLogEntry, error)

	// CleanupLogs drops log entries older than the threshold in days
	CleanupLogs(ctx context.Context, days int) error

	Start() error
	Stop()
}
