package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
	"github.com/Alash95/reporter/internal/services/notify"
	"github.com/Alash95/reporter/internal/services/parser"
	"github.com/Alash95/reporter/internal/services/registry"
	"github.com/Alash95/reporter/internal/storage/file"
)

type pipelineFixture struct {
	pipeline *Pipeline
	registry *registry.Registry
	notifier *notify.Service
	dir      string
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	dir := t.TempDir()
	logger := common.GetLogger()

	store, err := file.NewStore(logger, filepath.Join(dir, "registry.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := registry.NewRegistry(store, logger)

	log, err := notify.NewLog(filepath.Join(dir, "notifications.log"))
	require.NoError(t, err)
	notifier := notify.NewService(logger, &common.NotificationsConfig{QueueSize: 32, SampleRows: 3}, log)
	notifier.SetSyncStamper(func(ctx context.Context, sourceID, feature string) error {
		return reg.UpdateFeatureSync(ctx, sourceID, feature, interfaces.FeatureSyncPatch{})
	})
	require.NoError(t, notifier.Start())
	t.Cleanup(notifier.Stop)

	cfg := &common.IngestConfig{Concurrency: 2, QueueSize: 16, StuckAfter: "5m"}
	p := NewPipeline(logger, cfg, 3, reg, parser.NewParser(logger, 0), notifier)
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)

	return &pipelineFixture{pipeline: p, registry: reg, notifier: notifier, dir: dir}
}

func (f *pipelineFixture) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (f *pipelineFixture) waitForStatus(t *testing.T, id string, want models.SourceStatus) *models.DataSource {
	t.Helper()
	var src *models.DataSource
	require.Eventually(t, func() bool {
		got, err := f.registry.Get(context.Background(), id)
		if err != nil {
			return false
		}
		src = got
		return got.Status == want
	}, 5*time.Second, 20*time.Millisecond, "source %s never reached %s", id, want)
	return src
}

func TestPipeline_CSVLifecycle(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "sales.csv", "region,amount\nnorth,100\nsouth,250\n")

	src, err := f.pipeline.Submit(context.Background(), "owner-a", "Sales", path, "csv")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, src.Status)

	done := f.waitForStatus(t, src.ID, models.StatusCompleted)
	assert.Equal(t, models.SourceKindTabular, done.Kind)
	assert.Equal(t, 2, done.RowCount)
	require.Len(t, done.Schema, 2)
	assert.NotEmpty(t, done.SemanticModelID)
	assert.Empty(t, done.Error)
	assert.Nil(t, done.ProcessingFrom)

	model, err := f.registry.GetModel(context.Background(), done.SemanticModelID)
	require.NoError(t, err)
	assert.Equal(t, src.ID, model.SourceID)

	payload, err := f.registry.GetPayload(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, payload.RowCount)

	// Every feature is enabled and eventually stamped by dispatch
	require.Eventually(t, func() bool {
		got, err := f.registry.Get(context.Background(), src.ID)
		if err != nil {
			return false
		}
		for _, feature := range models.KnownFeatures {
			state, ok := got.FeatureSync[feature]
			if !ok || state.LastSync == nil {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)
}

func TestPipeline_TextLifecycle(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "notes.txt", "some notes")

	src, err := f.pipeline.Submit(context.Background(), "owner-a", "Notes", path, "txt")
	require.NoError(t, err)

	done := f.waitForStatus(t, src.ID, models.StatusCompleted)
	assert.Equal(t, models.SourceKindText, done.Kind)
	assert.Empty(t, done.Schema)
	assert.Empty(t, done.SemanticModelID)
}

func TestPipeline_ParseFailure(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "empty.csv", "")

	src, err := f.pipeline.Submit(context.Background(), "owner-a", "Broken", path, "csv")
	require.NoError(t, err)

	done := f.waitForStatus(t, src.ID, models.StatusFailed)
	assert.Contains(t, done.Error, "empty file")
	assert.Nil(t, done.ProcessingFrom)
}

func TestPipeline_UnsupportedTypeRejectedUpfront(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Submit(context.Background(), "owner-a", "Image", "/tmp/x.png", "png")
	var parseErr *interfaces.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestPipeline_Reprocess(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.csv", "a\n1\n")

	src, err := f.pipeline.Submit(context.Background(), "owner-a", "Data", path, "csv")
	require.NoError(t, err)
	f.waitForStatus(t, src.ID, models.StatusCompleted)

	// Replace the file contents and reprocess under a new generation
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n3,4\n"), 0644))

	again, err := f.pipeline.Reprocess(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Greater(t, again.Generation, src.Generation)

	require.Eventually(t, func() bool {
		got, err := f.registry.Get(context.Background(), src.ID)
		return err == nil && got.Status == models.StatusCompleted && got.RowCount == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestPipeline_ReprocessSameSchemaRefreshesModelOnly(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.csv", "a\n1\n")

	refreshed := make(chan models.SyncEvent, 8)
	f.notifier.RegisterHandler(models.FeatureQueryBuilder, func(ctx context.Context, ev models.SyncEvent) error {
		if ev.Type == models.EventSchemaUpdated {
			refreshed <- ev
		}
		return nil
	})

	src, err := f.pipeline.Submit(context.Background(), "owner-a", "Data", path, "csv")
	require.NoError(t, err)
	first := f.waitForStatus(t, src.ID, models.StatusCompleted)
	require.NotEmpty(t, first.SemanticModelID)

	// Same columns, one more row: the schema is unchanged
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n2\n"), 0644))
	_, err = f.pipeline.Reprocess(context.Background(), src.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := f.registry.Get(context.Background(), src.ID)
		return err == nil && got.Status == models.StatusCompleted && got.RowCount == 2
	}, 5*time.Second, 20*time.Millisecond)

	select {
	case ev := <-refreshed:
		assert.Equal(t, src.ID, ev.SourceID)
		assert.Nil(t, ev.Source)
		assert.NotNil(t, ev.ModelSummary)
	case <-time.After(2 * time.Second):
		t.Fatal("model refresh event never dispatched")
	}

	// The superseded model document is gone, the new one resolvable
	second, err := f.registry.Get(context.Background(), src.ID)
	require.NoError(t, err)
	require.NotEmpty(t, second.SemanticModelID)
	assert.NotEqual(t, first.SemanticModelID, second.SemanticModelID)
	_, err = f.registry.GetModel(context.Background(), first.SemanticModelID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	_, err = f.registry.GetModel(context.Background(), second.SemanticModelID)
	assert.NoError(t, err)
}

func TestPipeline_ReprocessEmptySchemaClearsModel(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.csv", "a\n1\n")

	src, err := f.pipeline.Submit(context.Background(), "owner-a", "Data", path, "csv")
	require.NoError(t, err)
	first := f.waitForStatus(t, src.ID, models.StatusCompleted)
	require.NotEmpty(t, first.SemanticModelID)

	// All values empty: every column is dropped and no model is generated
	require.NoError(t, os.WriteFile(path, []byte("a,b\n,\n"), 0644))
	_, err = f.pipeline.Reprocess(context.Background(), src.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := f.registry.Get(context.Background(), src.ID)
		return err == nil && got.Status == models.StatusCompleted && got.SemanticModelID == ""
	}, 5*time.Second, 20*time.Millisecond)

	_, err = f.registry.GetModel(context.Background(), first.SemanticModelID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestPipeline_ResyncReplaysSourceAdded(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.csv", "a\n1\n")

	added := make(chan models.SyncEvent, 8)
	f.notifier.RegisterHandler(models.FeatureDashboardBuilder, func(ctx context.Context, ev models.SyncEvent) error {
		if ev.Type == models.EventSourceAdded {
			added <- ev
		}
		return nil
	})

	src, err := f.pipeline.Submit(context.Background(), "owner-a", "Data", path, "csv")
	require.NoError(t, err)
	f.waitForStatus(t, src.ID, models.StatusCompleted)

	// Initial ingestion announces once
	select {
	case <-added:
	case <-time.After(2 * time.Second):
		t.Fatal("initial source_added never dispatched")
	}

	require.NoError(t, f.pipeline.Resync(context.Background(), src.ID, []string{models.FeatureDashboardBuilder}))

	select {
	case ev := <-added:
		assert.Equal(t, src.ID, ev.SourceID)
		require.NotNil(t, ev.Source)
		assert.NotEmpty(t, ev.Source.Columns)
	case <-time.After(2 * time.Second):
		t.Fatal("resync never replayed source_added")
	}
}

func TestPipeline_DeleteAnnouncesRemoval(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.csv", "a\n1\n")

	removed := make(chan string, len(models.KnownFeatures))
	f.notifier.RegisterHandler(models.FeatureQueryBuilder, func(ctx context.Context, ev models.SyncEvent) error {
		if ev.Type == models.EventSourceRemoved {
			removed <- ev.SourceID
		}
		return nil
	})

	src, err := f.pipeline.Submit(context.Background(), "owner-a", "Data", path, "csv")
	require.NoError(t, err)
	f.waitForStatus(t, src.ID, models.StatusCompleted)

	require.NoError(t, f.pipeline.Delete(context.Background(), src.ID))

	select {
	case id := <-removed:
		assert.Equal(t, src.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("removal event never dispatched")
	}

	_, err = f.registry.Get(context.Background(), src.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipeline_ResetStuckRetriggersProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.writeFile(t, "stuck.csv", "a\n1\n2\n")

	old := time.Now().UTC().Add(-time.Hour)
	stuck := &models.DataSource{
		ID:             "src_stuck",
		OwnerID:        "owner-a",
		Name:           "Stuck",
		Status:         models.StatusProcessing,
		FileType:       "csv",
		FilePath:       path,
		ProcessingFrom: &old,
		RegisteredAt:   time.Now().UTC(),
	}
	require.NoError(t, f.registry.SaveSource(ctx, stuck))

	fresh := time.Now().UTC()
	active := &models.DataSource{
		ID:             "src_active",
		OwnerID:        "owner-a",
		Name:           "Active",
		Status:         models.StatusProcessing,
		ProcessingFrom: &fresh,
		RegisteredAt:   time.Now().UTC(),
	}
	require.NoError(t, f.registry.SaveSource(ctx, active))

	reset, err := f.pipeline.ResetStuck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	// Reset goes back through pending and the re-enqueued work completes
	done := f.waitForStatus(t, "src_stuck", models.StatusCompleted)
	assert.Empty(t, done.Error)
	assert.Equal(t, 2, done.RowCount)
	assert.Greater(t, done.Generation, stuck.Generation)

	got, err := f.registry.Get(ctx, "src_active")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)
}
