package interfaces

import (
	"context"

	"github.com/Alash95/reporter/internal/models"
)

// QueryResultColumn describes one result column with its type re-inferred
// from the actual result values
type QueryResultColumn struct {
	Name string            `json:"name"`
	Type models.ColumnType `json:"type"`
}

// QueryResult is the outcome of one ad hoc query execution
type QueryResult struct {
	Rows    []map[string]any    `json:"rows"`
	Columns []QueryResultColumn `json:"columns"`
}

// QueryExecutor loads a source's rows into a fresh embedded relational table
// scoped to the single request and executes SQL verbatim against it. Every
// invocation is independent; no session spans calls.
type QueryExecutor interface {
	Execute(ctx context.Context, sourceID, sqlText string) (*QueryResult, error)
}
