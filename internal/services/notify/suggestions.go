package notify

import (
	"fmt"

	"github.com/Alash95/reporter/internal/models"
)

const maxSuggestions = 5

// BuildSuggestions produces starter prompts for a feature from a source's
// inferred schema. Text sources get a generic set; tabular sources get
// column-aware ones.
func BuildSuggestions(feature string, src *models.DataSource) []string {
	if src.Kind == models.SourceKindText {
		return textSuggestions(feature, src.Name)
	}

	var numeric, datetime, categorical []string
	for _, col := range src.Schema {
		switch {
		case col.Type.IsNumeric():
			numeric = append(numeric, col.Name)
		case col.Type == models.ColumnTypeDateTime:
			datetime = append(datetime, col.Name)
		case col.Type == models.ColumnTypeString:
			categorical = append(categorical, col.Name)
		}
	}

	var out []string
	switch feature {
	case models.FeatureQueryBuilder:
		out = append(out, fmt.Sprintf("Count all rows in %s", src.Name))
		for _, c := range numeric {
			out = append(out, fmt.Sprintf("Sum %s across all rows", c))
		}
		for _, c := range categorical {
			out = append(out, fmt.Sprintf("Group by %s", c))
		}
	case models.FeatureDashboardBuilder:
		for _, n := range numeric {
			if len(categorical) > 0 {
				out = append(out, fmt.Sprintf("Bar chart of %s by %s", n, categorical[0]))
			}
			if len(datetime) > 0 {
				out = append(out, fmt.Sprintf("Trend of %s over %s", n, datetime[0]))
			}
		}
		out = append(out, fmt.Sprintf("Record count for %s", src.Name))
	default:
		out = append(out, fmt.Sprintf("How many records are in %s?", src.Name))
		for _, c := range numeric {
			out = append(out, fmt.Sprintf("What is the total %s?", c))
			out = append(out, fmt.Sprintf("What is the average %s?", c))
		}
		for _, c := range categorical {
			out = append(out, fmt.Sprintf("What are the distinct values of %s?", c))
		}
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func textSuggestions(feature, name string) []string {
	switch feature {
	case models.FeatureQueryBuilder, models.FeatureDashboardBuilder:
		// Text sources are not queryable; these features get no prompts
		return nil
	default:
		return []string{
			fmt.Sprintf("Summarize %s", name),
			fmt.Sprintf("What are the key points in %s?", name),
		}
	}
}
