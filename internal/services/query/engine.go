package query

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
	"github.com/Alash95/reporter/internal/services/inference"
)

// Engine executes ad hoc SQL against a source's rows. Each call opens a
// fresh in-memory database, loads the rows, runs the statement verbatim
// and discards the database. Nothing persists between calls.
type Engine struct {
	logger   arbor.ILogger
	registry interfaces.SourceRegistry
}

var _ interfaces.QueryExecutor = (*Engine)(nil)

func NewEngine(logger arbor.ILogger, registry interfaces.SourceRegistry) *Engine {
	return &Engine{logger: logger, registry: registry}
}

// tableName is the canonical table every source's rows load into. Generated
// query suggestions target it, so it never varies per source.
const tableName = "data"

// Execute runs sqlText against the source's rows loaded into the embedded
// "data" table
func (e *Engine) Execute(ctx context.Context, sourceID, sqlText string) (*interfaces.QueryResult, error) {
	src, err := e.registry.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if src.Status != models.StatusCompleted || src.Kind != models.SourceKindTabular {
		return nil, fmt.Errorf("source %s is not queryable", sourceID)
	}

	payload, err := e.registry.GetPayload(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rows for %s: %w", sourceID, err)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded database: %w", err)
	}
	defer db.Close()
	// The in-memory database vanishes if the pool opens a second connection
	db.SetMaxOpenConns(1)

	if err := loadTable(ctx, db, tableName, src.Schema, payload.Rows); err != nil {
		return nil, err
	}

	result, err := runQuery(ctx, db, sqlText)
	if err != nil {
		return nil, err
	}

	if err := e.registry.TrackAccess(ctx, sourceID); err != nil {
		e.logger.Warn().Err(err).Str("source_id", sourceID).Msg("Failed to track query access")
	}

	e.logger.Debug().
		Str("source_id", sourceID).
		Int("result_rows", len(result.Rows)).
		Msg("Query executed")
	return result, nil
}

// loadTable creates the table from the inferred schema and inserts every
// row, coercing values to the column's inferred type
func loadTable(ctx context.Context, db *sql.DB, tableName string, schema []models.ColumnSchema, rows []map[string]any) error {
	if len(schema) == 0 {
		return fmt.Errorf("source has no queryable columns")
	}

	defs := make([]string, len(schema))
	names := make([]string, len(schema))
	placeholders := make([]string, len(schema))
	for i, col := range schema {
		defs[i] = quoteIdent(col.Name) + " " + sqliteType(col.Type)
		names[i] = quoteIdent(col.Name)
		placeholders[i] = "?"
	}

	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(tableName), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	insertStmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(tableName), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	stmt, err := db.PrepareContext(ctx, insertStmt)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(schema))
		for i, col := range schema {
			args[i] = coerce(col.Type, row[col.Name])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to load row: %w", err)
		}
	}
	return nil
}

func runQuery(ctx context.Context, db *sql.DB, sqlText string) (*interfaces.QueryResult, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, &interfaces.QueryError{SQL: sqlText, Err: err}
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, &interfaces.QueryError{SQL: sqlText, Err: err}
	}

	out := make([]map[string]any, 0)
	values := make([]any, len(colNames))
	scanners := make([]any, len(colNames))
	for i := range values {
		scanners[i] = &values[i]
	}

	columnValues := make([][]any, len(colNames))
	for rows.Next() {
		if err := rows.Scan(scanners...); err != nil {
			return nil, &interfaces.QueryError{SQL: sqlText, Err: err}
		}
		row := make(map[string]any, len(colNames))
		for i, name := range colNames {
			v := normalizeSQLValue(values[i])
			row[name] = v
			columnValues[i] = append(columnValues[i], v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &interfaces.QueryError{SQL: sqlText, Err: err}
	}

	// Result types come from the values actually returned, not from the
	// source schema; expressions and aggregates have no source column
	columns := make([]interfaces.QueryResultColumn, len(colNames))
	for i, name := range colNames {
		columns[i] = interfaces.QueryResultColumn{
			Name: name,
			Type: inference.ClassifyValues(columnValues[i]),
		}
	}

	return &interfaces.QueryResult{Rows: out, Columns: columns}, nil
}

// coerce converts a stored row value into the driver representation of the
// column's inferred type. Unparsable values load as NULL.
func coerce(colType models.ColumnType, v any) any {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}

	switch colType {
	case models.ColumnTypeInteger:
		switch n := v.(type) {
		case float64:
			return int64(n)
		case int, int32, int64:
			return n
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return i
			}
		}
		return nil
	case models.ColumnTypeNumber:
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f
			}
		}
		return nil
	case models.ColumnTypeBoolean:
		switch b := v.(type) {
		case bool:
			if b {
				return int64(1)
			}
			return int64(0)
		case string:
			if strings.EqualFold(strings.TrimSpace(b), "true") {
				return int64(1)
			}
			return int64(0)
		}
		return nil
	default:
		return fmt.Sprintf("%v", v)
	}
}

// normalizeSQLValue converts driver types into JSON-friendly values
func normalizeSQLValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return v
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqliteType(t models.ColumnType) string {
	switch t {
	case models.ColumnTypeInteger, models.ColumnTypeBoolean:
		return "INTEGER"
	case models.ColumnTypeNumber:
		return "REAL"
	default:
		return "TEXT"
	}
}
