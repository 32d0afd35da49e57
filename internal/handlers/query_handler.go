package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/interfaces"
)

// QueryHandler exposes ad hoc SQL execution against a single source
type QueryHandler struct {
	executor interfaces.QueryExecutor
	logger   arbor.ILogger
}

func NewQueryHandler(executor interfaces.QueryExecutor, logger arbor.ILogger) *QueryHandler {
	return &QueryHandler{executor: executor, logger: logger}
}

// ExecuteHandler runs one SQL statement against a source's rows
func (h *QueryHandler) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var body struct {
		SourceID string `json:"source_id"`
		SQL      string `json:"sql"`
	}
	if err := ReadJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.SourceID == "" || strings.TrimSpace(body.SQL) == "" {
		WriteError(w, http.StatusBadRequest, "source_id and sql are required")
		return
	}

	result, err := h.executor.Execute(r.Context(), body.SourceID, body.SQL)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "source not found")
			return
		}
		var queryErr *interfaces.QueryError
		if errors.As(err, &queryErr) {
			WriteError(w, http.StatusBadRequest, queryErr.Error())
			return
		}
		h.logger.Error().Err(err).Str("source_id", body.SourceID).Msg("Query execution failed")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
