package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/models"
	"github.com/Alash95/reporter/internal/services/notify"
)

// ContextHandler serves each feature's projection: the denormalized view a
// consumer renders from, read without touching the registry
type ContextHandler struct {
	projections *notify.ProjectionStore
	logger      arbor.ILogger
}

func NewContextHandler(projections *notify.ProjectionStore, logger arbor.ILogger) *ContextHandler {
	return &ContextHandler{projections: projections, logger: logger}
}

// FeatureContextHandler returns the projection for one feature
func (h *ContextHandler) FeatureContextHandler(w http.ResponseWriter, r *http.Request, feature string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	known := false
	for _, f := range models.KnownFeatures {
		if f == feature {
			known = true
			break
		}
	}
	if !known {
		WriteError(w, http.StatusNotFound, "unknown feature")
		return
	}

	entries, err := h.projections.Get(feature)
	if err != nil {
		h.logger.Error().Err(err).Str("feature", feature).Msg("Failed to read projection")
		WriteError(w, http.StatusInternalServerError, "failed to read projection")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"feature": feature,
		"sources": entries,
		"count":   len(entries),
	})
}
