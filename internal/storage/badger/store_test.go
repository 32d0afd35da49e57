package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/interfaces"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(common.GetLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "registry"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorePutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, store.Put(ctx, "payload:src_1", record{Name: "sales", Count: 3}))

	var out record
	require.NoError(t, store.Get(ctx, "payload:src_1", &out))
	assert.Equal(t, "sales", out.Name)
	assert.Equal(t, 3, out.Count)

	// Put replaces the full document
	require.NoError(t, store.Put(ctx, "payload:src_1", record{Name: "sales"}))
	require.NoError(t, store.Get(ctx, "payload:src_1", &out))
	assert.Equal(t, 0, out.Count)
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	var out map[string]any
	err := store.Get(context.Background(), "payload:missing", &out)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestStoreDeleteIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "model:model_1", map[string]string{"table": "sales"}))
	require.NoError(t, store.Delete(ctx, "model:model_1"))
	require.NoError(t, store.Delete(ctx, "model:model_1"))

	var out map[string]string
	assert.ErrorIs(t, store.Get(ctx, "model:model_1", &out), interfaces.ErrNotFound)
}

func TestStoreScanPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "payload:src_1", map[string]int{"rows": 1}))
	require.NoError(t, store.Put(ctx, "payload:src_2", map[string]int{"rows": 2}))
	require.NoError(t, store.Put(ctx, "model:model_1", map[string]int{"cols": 4}))

	keys, err := store.Scan(ctx, "payload:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"payload:src_1", "payload:src_2"}, keys)

	keys, err = store.Scan(ctx, "registry")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
