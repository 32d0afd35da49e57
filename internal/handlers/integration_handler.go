package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
	"github.com/Alash95/reporter/internal/services/ingest"
)

// IntegrationHandler serves the feature-integration surface: per-feature
// source listings, sync state, manual re-sync, statistics and the
// notification history.
type IntegrationHandler struct {
	registry interfaces.SourceRegistry
	notifier interfaces.NotificationService
	pipeline *ingest.Pipeline
	logger   arbor.ILogger
}

func NewIntegrationHandler(
	registry interfaces.SourceRegistry,
	notifier interfaces.NotificationService,
	pipeline *ingest.Pipeline,
	logger arbor.ILogger,
) *IntegrationHandler {
	return &IntegrationHandler{
		registry: registry,
		notifier: notifier,
		pipeline: pipeline,
		logger:   logger,
	}
}

// SourcesHandler lists sources, optionally scoped to one feature's view
func (h *IntegrationHandler) SourcesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		WriteError(w, http.StatusBadRequest, "missing owner_id parameter")
		return
	}

	var (
		sources []*models.DataSource
		err     error
	)
	if feature := r.URL.Query().Get("feature"); feature != "" {
		sources, err = h.registry.ListForFeature(r.Context(), feature, ownerID)
	} else {
		sources, err = h.registry.ListByOwner(r.Context(), ownerID)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list integration sources")
		WriteError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"sources": sources,
		"count":   len(sources),
	})
}

// SourceStatusHandler returns one source's integration status
func (h *IntegrationHandler) SourceStatusHandler(w http.ResponseWriter, r *http.Request, id string) {
	info, err := h.registry.SourceStatus(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, id, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// UpdateFeatureHandler toggles one feature's sync state for a source
func (h *IntegrationHandler) UpdateFeatureHandler(w http.ResponseWriter, r *http.Request, id, feature string) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := ReadJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Enabled == nil {
		WriteError(w, http.StatusBadRequest, "missing enabled field")
		return
	}

	err := h.registry.UpdateFeatureSync(r.Context(), id, feature, interfaces.FeatureSyncPatch{Enabled: body.Enabled})
	if err != nil {
		h.writeRegistryError(w, id, err)
		return
	}
	WriteSuccess(w, fmt.Sprintf("feature %s updated for %s", feature, id))
}

// ResyncHandler re-announces a source to the requested features
func (h *IntegrationHandler) ResyncHandler(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Features []string `json:"features"`
	}
	if r.ContentLength > 0 {
		if err := ReadJSON(r, &body); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.pipeline.Resync(r.Context(), id, body.Features); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, fmt.Sprintf("source %s not found", id))
			return
		}
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteSuccess(w, fmt.Sprintf("resync queued for %s", id))
}

// TrackAccessHandler records a consumer touching a source
func (h *IntegrationHandler) TrackAccessHandler(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.registry.TrackAccess(r.Context(), id); err != nil {
		h.writeRegistryError(w, id, err)
		return
	}
	WriteSuccess(w, fmt.Sprintf("access recorded for %s", id))
}

// StatisticsHandler aggregates usage across the registry
func (h *IntegrationHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats, err := h.registry.Statistics(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute statistics")
		WriteError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// NotificationsHandler returns the recent notification history
func (h *IntegrationHandler) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	entries, err := h.notifier.GetHistory(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read notification history")
		WriteError(w, http.StatusInternalServerError, "failed to read notification history")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"notifications": entries,
		"count":         len(entries),
	})
}

// CleanupHandler runs the inactive-source and log retention sweeps on demand
func (h *IntegrationHandler) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var body struct {
		InactiveDays     int `json:"inactive_days"`
		LogRetentionDays int `json:"log_retention_days"`
	}
	if r.ContentLength > 0 {
		if err := ReadJSON(r, &body); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if body.InactiveDays <= 0 {
		body.InactiveDays = 30
	}
	if body.LogRetentionDays <= 0 {
		body.LogRetentionDays = 30
	}

	removed, err := h.registry.CleanupInactive(r.Context(), body.InactiveDays)
	if err != nil {
		h.logger.Error().Err(err).Msg("Inactive-source cleanup failed")
		WriteError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	if err := h.notifier.CleanupLogs(r.Context(), body.LogRetentionDays); err != nil {
		h.logger.Warn().Err(err).Msg("Notification log cleanup failed")
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"removed": removed,
	})
}

func (h *IntegrationHandler) writeRegistryError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, interfaces.ErrNotFound) {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("source %s not found", id))
		return
	}
	h.logger.Error().Err(err).Str("source_id", id).Msg("Registry operation failed")
	WriteError(w, http.StatusInternalServerError, err.Error())
}
