package semantics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alash95/reporter/internal/models"
)

func testSource(schema []models.ColumnSchema) *models.DataSource {
	return &models.DataSource{
		ID:     "src_test",
		Name:   "Sales Report 2024",
		Schema: schema,
	}
}

func TestGenerate_MetricsForNumericColumns(t *testing.T) {
	source := testSource([]models.ColumnSchema{
		{Name: "Region", Type: models.ColumnTypeString},
		{Name: "Revenue", Type: models.ColumnTypeNumber},
		{Name: "Units", Type: models.ColumnTypeInteger},
	})

	model := Generate(source)

	require.NotNil(t, model)
	assert.Equal(t, "src_test", model.SourceID)
	assert.Equal(t, "sales_report_2024", model.Table.Name)

	names := make([]string, 0, len(model.Metrics))
	for _, m := range model.Metrics {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "sum_revenue")
	assert.Contains(t, names, "avg_revenue")
	assert.Contains(t, names, "count_revenue")
	assert.Contains(t, names, "sum_units")
	assert.Contains(t, names, "avg_units")
	assert.Contains(t, names, "count_units")
	assert.Contains(t, names, models.RowCountMetric)
	assert.NotContains(t, names, "sum_region")

	// 2 numeric columns x 3 aggregations + row_count
	assert.Len(t, model.Metrics, 7)
}

func TestGenerate_DimensionPerColumn(t *testing.T) {
	source := testSource([]models.ColumnSchema{
		{Name: "Customer Name", Type: models.ColumnTypeString},
		{Name: "Signup Date", Type: models.ColumnTypeDateTime, Nullable: true},
	})

	model := Generate(source)

	require.Len(t, model.Dimensions, 2)
	assert.Equal(t, "customer_name", model.Dimensions[0].Name)
	assert.Equal(t, "Customer Name", model.Dimensions[0].Title)
	assert.Equal(t, "Customer Name", model.Dimensions[0].SourceColumn)
	assert.Equal(t, "signup_date", model.Dimensions[1].Name)
	assert.Equal(t, models.ColumnTypeDateTime, model.Dimensions[1].Type)
}

func TestGenerate_DimensionNameCollision(t *testing.T) {
	source := testSource([]models.ColumnSchema{
		{Name: "Total Sales", Type: models.ColumnTypeNumber},
		{Name: "total sales", Type: models.ColumnTypeNumber},
	})

	model := Generate(source)

	require.Len(t, model.Dimensions, 2)
	assert.Equal(t, "total_sales", model.Dimensions[0].Name)
	assert.Equal(t, "total_sales_2", model.Dimensions[1].Name)
}

func TestGenerate_EmptySchema(t *testing.T) {
	model := Generate(testSource(nil))

	require.NotNil(t, model)
	assert.Empty(t, model.Dimensions)
	require.Len(t, model.Metrics, 1)
	assert.Equal(t, models.RowCountMetric, model.Metrics[0].Name)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "order_total", normalizeName("  Order Total  "))
	assert.Equal(t, "q1_revenue", normalizeName("Q1 Revenue ($)"))
	assert.Equal(t, "a_b", normalizeName("a---b"))
}
