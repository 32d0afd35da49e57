package notify

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	log, err := NewLog(filepath.Join(t.TempDir(), "notifications.log"))
	require.NoError(t, err)

	cfg := &common.NotificationsConfig{QueueSize: 16, SampleRows: 5}
	svc := NewService(common.GetLogger(), cfg, log)
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)
	return svc
}

func addedEvent(sourceID string) models.SyncEvent {
	return models.SyncEvent{
		Type:     models.EventSourceAdded,
		SourceID: sourceID,
		Source: &models.SourceEnvelope{
			SourceID:   sourceID,
			SourceName: "Sales",
			DataType:   models.SourceKindTabular,
			Columns:    []models.ColumnSchema{{Name: "amount", Type: models.ColumnTypeNumber}},
		},
	}
}

func TestService_DeliversInOrder(t *testing.T) {
	svc := newTestService(t)

	received := make(chan string, 10)
	svc.RegisterHandler(models.FeatureQueryBuilder, func(ctx context.Context, ev models.SyncEvent) error {
		received <- ev.SourceID
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Notify(ctx, models.FeatureQueryBuilder, addedEvent(fmt.Sprintf("src_%d", i))))
	}

	for i := 0; i < 3; i++ {
		select {
		case id := <-received:
			assert.Equal(t, fmt.Sprintf("src_%d", i), id)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestService_HandlerErrorIsIsolated(t *testing.T) {
	svc := newTestService(t)

	received := make(chan string, 10)
	svc.RegisterHandler(models.FeatureAIAssistant, func(ctx context.Context, ev models.SyncEvent) error {
		return fmt.Errorf("handler blew up")
	})
	svc.RegisterHandler(models.FeatureAIAssistant, func(ctx context.Context, ev models.SyncEvent) error {
		received <- ev.SourceID
		return nil
	})

	require.NoError(t, svc.Notify(context.Background(), models.FeatureAIAssistant, addedEvent("src_1")))
	require.NoError(t, svc.Notify(context.Background(), models.FeatureAIAssistant, addedEvent("src_2")))

	for _, want := range []string{"src_1", "src_2"} {
		select {
		case id := <-received:
			assert.Equal(t, want, id)
		case <-time.After(2 * time.Second):
			t.Fatal("dispatch stalled after handler error")
		}
	}
}

func TestService_NotifyAllFansOut(t *testing.T) {
	svc := newTestService(t)

	var mu sync.Mutex
	features := make(map[string]bool)
	done := make(chan struct{}, len(models.KnownFeatures))
	for _, feature := range models.KnownFeatures {
		f := feature
		svc.RegisterHandler(f, func(ctx context.Context, ev models.SyncEvent) error {
			mu.Lock()
			features[f] = true
			mu.Unlock()
			done <- struct{}{}
			return nil
		})
	}

	require.NoError(t, svc.NotifyAll(context.Background(), addedEvent("src_1")))

	for range models.KnownFeatures {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("fan-out did not reach every feature")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, features, len(models.KnownFeatures))
}

func TestService_RejectsInvalidEvent(t *testing.T) {
	svc := newTestService(t)

	err := svc.Notify(context.Background(), models.FeatureQueryBuilder, models.SyncEvent{
		Type: "exploded",
	})
	assert.Error(t, err)

	err = svc.Notify(context.Background(), "nonexistent_feature", addedEvent("src_1"))
	assert.Error(t, err)
}

func TestService_HistoryRecordsDispatch(t *testing.T) {
	svc := newTestService(t)

	delivered := make(chan struct{}, 4)
	svc.RegisterHandler(models.FeatureConversationalAI, func(ctx context.Context, ev models.SyncEvent) error {
		delivered <- struct{}{}
		return nil
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Notify(context.Background(), models.FeatureConversationalAI,
			addedEvent(fmt.Sprintf("src_%d", i))))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-delivered:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatch stalled")
		}
	}

	entries, err := svc.GetHistory(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "src_1", entries[0].Summary["source_id"])
	assert.Equal(t, "src_2", entries[1].Summary["source_id"])
	assert.Equal(t, models.EventSourceAdded, entries[0].Type)
}

func TestLog_CleanupOlderThan(t *testing.T) {
	log, err := NewLog(filepath.Join(t.TempDir(), "notifications.log"))
	require.NoError(t, err)

	old := models.NotificationLogEntry{
		Timestamp: time.Now().UTC().AddDate(0, 0, -60),
		ID:        "evt_old",
		Feature:   models.FeatureQueryBuilder,
		Type:      models.EventSourceAdded,
	}
	fresh := models.NotificationLogEntry{
		Timestamp: time.Now().UTC(),
		ID:        "evt_fresh",
		Feature:   models.FeatureQueryBuilder,
		Type:      models.EventSourceAdded,
	}
	require.NoError(t, log.Append(old))
	require.NoError(t, log.Append(fresh))

	dropped, err := log.CleanupOlderThan(30)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	entries, err := log.ReadLast(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "evt_fresh", entries[0].ID)
}
