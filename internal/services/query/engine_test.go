package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
	"github.com/Alash95/reporter/internal/services/registry"
	"github.com/Alash95/reporter/internal/services/semantics"
	"github.com/Alash95/reporter/internal/storage/file"
)

func newTestEngine(t *testing.T) (*Engine, *registry.Registry) {
	t.Helper()
	store, err := file.NewStore(common.GetLogger(), filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := registry.NewRegistry(store, common.GetLogger())
	return NewEngine(common.GetLogger(), reg), reg
}

func seedSource(t *testing.T, reg *registry.Registry) string {
	t.Helper()
	ctx := context.Background()

	src := &models.DataSource{
		ID:      "src_orders",
		OwnerID: "owner-a",
		Name:    "Orders",
		Kind:    models.SourceKindTabular,
		Status:  models.StatusCompleted,
		Schema: []models.ColumnSchema{
			{Name: "region", Type: models.ColumnTypeString},
			{Name: "amount", Type: models.ColumnTypeNumber},
			{Name: "units", Type: models.ColumnTypeInteger},
		},
		Generation:   1,
		RegisteredAt: time.Now().UTC(),
	}

	// Completed tabular sources always carry a semantic model
	model := semantics.Generate(src)
	require.NoError(t, reg.StoreModel(ctx, model))
	src.SemanticModelID = model.ID
	require.NoError(t, reg.Register(ctx, src))

	payload := &models.ParsedData{
		Type: models.PayloadTabular,
		Columns: []models.ParsedColumn{
			{Name: "region"}, {Name: "amount"}, {Name: "units"},
		},
		Rows: []map[string]any{
			{"region": "north", "amount": "100.5", "units": "3"},
			{"region": "south", "amount": "200", "units": "5"},
			{"region": "north", "amount": "49.5", "units": "2"},
		},
		RowCount: 3,
	}
	require.NoError(t, reg.StorePayload(ctx, src.ID, payload))
	return src.ID
}

func TestEngine_SelectAll(t *testing.T) {
	engine, reg := newTestEngine(t)
	id := seedSource(t, reg)

	result, err := engine.Execute(context.Background(), id, "SELECT * FROM data ORDER BY units")
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, "north", result.Rows[0]["region"])
	assert.Equal(t, int64(2), result.Rows[0]["units"])
}

func TestEngine_Aggregation(t *testing.T) {
	engine, reg := newTestEngine(t)
	id := seedSource(t, reg)

	result, err := engine.Execute(context.Background(), id,
		"SELECT region, SUM(amount) AS total FROM data GROUP BY region ORDER BY region")
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 150.0, result.Rows[0]["total"])
	assert.Equal(t, 200.0, result.Rows[1]["total"])

	// Result types are re-inferred from the values, not the source schema
	byName := map[string]models.ColumnType{}
	for _, c := range result.Columns {
		byName[c.Name] = c.Type
	}
	assert.Equal(t, models.ColumnTypeString, byName["region"])
	assert.True(t, byName["total"].IsNumeric())
}

func TestEngine_ModeledSourceQueriesDataTable(t *testing.T) {
	engine, reg := newTestEngine(t)
	id := seedSource(t, reg)

	// The table is always "data" regardless of the semantic model's name
	src, err := reg.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotEmpty(t, src.SemanticModelID)

	result, err := engine.Execute(context.Background(), id, "SELECT AVG(units) AS avg_units FROM data")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.InDelta(t, 10.0/3.0, result.Rows[0]["avg_units"].(float64), 0.001)
}

func TestEngine_MalformedSQL(t *testing.T) {
	engine, reg := newTestEngine(t)
	id := seedSource(t, reg)

	_, err := engine.Execute(context.Background(), id, "SELEKT nonsense")
	var queryErr *interfaces.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, "SELEKT nonsense", queryErr.SQL)
}

func TestEngine_UnknownColumn(t *testing.T) {
	engine, reg := newTestEngine(t)
	id := seedSource(t, reg)

	_, err := engine.Execute(context.Background(), id, "SELECT missing_col FROM data")
	var queryErr *interfaces.QueryError
	assert.ErrorAs(t, err, &queryErr)
}

func TestEngine_UnknownSource(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Execute(context.Background(), "src_gone", "SELECT 1")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestEngine_TextSourceNotQueryable(t *testing.T) {
	engine, reg := newTestEngine(t)

	src := &models.DataSource{
		ID:           "src_text",
		OwnerID:      "owner-a",
		Name:         "Notes",
		Kind:         models.SourceKindText,
		Status:       models.StatusCompleted,
		Generation:   1,
		RegisteredAt: time.Now().UTC(),
	}
	require.NoError(t, reg.Register(context.Background(), src))

	_, err := engine.Execute(context.Background(), "src_text", "SELECT 1")
	assert.Error(t, err)
}

func TestEngine_TracksAccess(t *testing.T) {
	engine, reg := newTestEngine(t)
	id := seedSource(t, reg)

	_, err := engine.Execute(context.Background(), id, "SELECT 1 FROM data LIMIT 1")
	require.NoError(t, err)

	src, err := reg.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, src.AccessCount)
}
