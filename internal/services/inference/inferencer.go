package inference

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Alash95/reporter/internal/models"
)

// datetimeLayouts is the fixed set of date/time patterns a value must match
// to classify a column as datetime
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

// InferSchema classifies every column of a rectangular payload into a
// semantic type and nullability flag. Columns that are empty in every row
// are dropped; blank or duplicate headers are deduplicated with a
// positional suffix before classification. Deterministic: the only edge
// case is empty input, which yields an empty schema.
func InferSchema(columns []string, rows []map[string]any) []models.ColumnSchema {
	if len(columns) == 0 {
		return nil
	}

	names := NormalizeHeaders(columns)

	schema := make([]models.ColumnSchema, 0, len(names))
	for i, name := range names {
		// Values are looked up under the original header; a deduplicated
		// name keeps reading the original column's cells
		values := make([]any, 0, len(rows))
		nullable := false
		for _, row := range rows {
			v, ok := row[columns[i]]
			if !ok || isNull(v) {
				nullable = true
				continue
			}
			values = append(values, v)
		}

		// A column with no non-null values carries no signal
		if len(values) == 0 {
			continue
		}

		schema = append(schema, models.ColumnSchema{
			Name:     name,
			Type:     classify(values),
			Nullable: nullable,
		})
	}
	return schema
}

// NormalizeHeaders fills blank headers and disambiguates duplicates by
// appending the 1-based column position. Idempotent, so parsers may apply
// it before inference does.
func NormalizeHeaders(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, len(columns))
	for i, name := range columns {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if seen[name] {
			name = fmt.Sprintf("%s_%d", name, i+1)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// ClassifyValues picks the narrowest type every non-null value satisfies,
// in fixed priority order: integer, number, datetime, boolean, string.
// An empty or all-null slice classifies as string.
func ClassifyValues(values []any) models.ColumnType {
	nonNull := make([]any, 0, len(values))
	for _, v := range values {
		if !isNull(v) {
			nonNull = append(nonNull, v)
		}
	}
	if len(nonNull) == 0 {
		return models.ColumnTypeString
	}
	return classify(nonNull)
}

// classify picks the narrowest type every value satisfies, in fixed
// priority order: integer, number, datetime, boolean, string
func classify(values []any) models.ColumnType {
	allInt, allNum, allDate, allBool := true, true, true, true

	for _, v := range values {
		if allInt && !isInteger(v) {
			allInt = false
		}
		if allNum && !isNumber(v) {
			allNum = false
		}
		if allDate && !isDatetime(v) {
			allDate = false
		}
		if allBool && !isBoolean(v) {
			allBool = false
		}
		if !allInt && !allNum && !allDate && !allBool {
			return models.ColumnTypeString
		}
	}

	switch {
	case allInt:
		return models.ColumnTypeInteger
	case allNum:
		return models.ColumnTypeNumber
	case allDate:
		return models.ColumnTypeDateTime
	case allBool:
		return models.ColumnTypeBoolean
	default:
		return models.ColumnTypeString
	}
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		return n == math.Trunc(n) && !math.IsInf(n, 0) && !math.IsNaN(n)
	case float32:
		return float64(n) == math.Trunc(float64(n))
	case string:
		_, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return err == nil
	default:
		return false
	}
}

func isNumber(v any) bool {
	switch n := v.(type) {
	case int, int32, int64, float32:
		return true
	case float64:
		return !math.IsInf(n, 0) && !math.IsNaN(n)
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return err == nil
	default:
		return false
	}
}

func isDatetime(v any) bool {
	s, ok := v.(string)
	if !ok {
		if _, isTime := v.(time.Time); isTime {
			return true
		}
		return false
	}
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func isBoolean(v any) bool {
	switch b := v.(type) {
	case bool:
		return true
	case string:
		lower := strings.ToLower(strings.TrimSpace(b))
		return lower == "true" || lower == "false"
	default:
		return false
	}
}
