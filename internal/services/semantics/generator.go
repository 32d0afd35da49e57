package semantics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/models"
)

var nonIdentifier = regexp.MustCompile(`[^a-z0-9_]+`)

// Generate builds a semantic model from an inferred schema. Every column
// becomes a dimension; every numeric column additionally yields sum, avg
// and count metrics; a row_count metric is always present. An empty schema
// produces a model with only the row_count metric and no dimensions.
func Generate(source *models.DataSource) *models.SemanticModel {
	model := &models.SemanticModel{
		ID:       common.NewModelID(),
		SourceID: source.ID,
		Table: models.TableDef{
			Name:    normalizeName(source.Name),
			Columns: make([]models.TableColumn, 0, len(source.Schema)),
		},
		Metrics:    []models.Metric{},
		Dimensions: []models.Dimension{},
		CreatedAt:  time.Now().UTC(),
	}

	seen := make(map[string]bool, len(source.Schema))
	for i, col := range source.Schema {
		name := normalizeName(col.Name)
		if name == "" {
			name = fmt.Sprintf("col_%d", i+1)
		}
		if seen[name] {
			name = fmt.Sprintf("%s_%d", name, i+1)
		}
		seen[name] = true

		model.Table.Columns = append(model.Table.Columns, models.TableColumn{
			Name: col.Name,
			Type: col.Type,
		})

		model.Dimensions = append(model.Dimensions, models.Dimension{
			Name:         name,
			Title:        titleize(col.Name),
			SourceColumn: col.Name,
			Type:         col.Type,
		})

		if col.Type.IsNumeric() {
			model.Metrics = append(model.Metrics,
				models.Metric{
					Name:         "sum_" + name,
					Title:        "Total " + titleize(col.Name),
					Aggregation:  models.AggregationSum,
					TargetColumn: col.Name,
				},
				models.Metric{
					Name:         "avg_" + name,
					Title:        "Average " + titleize(col.Name),
					Aggregation:  models.AggregationAvg,
					TargetColumn: col.Name,
				},
				models.Metric{
					Name:         "count_" + name,
					Title:        "Count of " + titleize(col.Name),
					Aggregation:  models.AggregationCount,
					TargetColumn: col.Name,
				},
			)
		}
	}

	model.Metrics = append(model.Metrics, models.Metric{
		Name:        models.RowCountMetric,
		Title:       "Row Count",
		Aggregation: models.AggregationCount,
	})

	return model
}

// normalizeName lowercases, trims and collapses a display name into a safe
// snake_case identifier
func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = nonIdentifier.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return name
}

func titleize(name string) string {
	parts := strings.FieldsFunc(strings.TrimSpace(name), func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
