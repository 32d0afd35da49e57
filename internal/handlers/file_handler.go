package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/services/ingest"
)

// FileHandler serves the upload and file lifecycle endpoints. Uploads are
// accepted asynchronously: the response carries the pending source and the
// pipeline does the rest.
type FileHandler struct {
	pipeline  *ingest.Pipeline
	registry  interfaces.SourceRegistry
	uploadDir string
	logger    arbor.ILogger
}

func NewFileHandler(pipeline *ingest.Pipeline, registry interfaces.SourceRegistry, uploadDir string, logger arbor.ILogger) *FileHandler {
	return &FileHandler{
		pipeline:  pipeline,
		registry:  registry,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// UploadHandler accepts a multipart upload and submits it for ingestion.
// Form fields: file (required), name, type (defaults to the file
// extension), owner_id.
func (h *FileHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	upload, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer upload.Close()

	fileType := strings.ToLower(strings.TrimSpace(r.FormValue("type")))
	if fileType == "" {
		fileType = strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = header.Filename
	}

	ownerID := strings.TrimSpace(r.FormValue("owner_id"))
	if ownerID == "" {
		WriteError(w, http.StatusBadRequest, "missing owner_id field")
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		h.logger.Error().Err(err).Msg("Failed to create upload directory")
		WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	dest, err := os.CreateTemp(h.uploadDir, "upload-*-"+filepath.Base(header.Filename))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create upload file")
		WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(dest, upload); err != nil {
		dest.Close()
		os.Remove(dest.Name())
		h.logger.Error().Err(err).Msg("Failed to write upload file")
		WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	dest.Close()

	src, err := h.pipeline.Submit(r.Context(), ownerID, name, dest.Name(), fileType)
	if err != nil {
		os.Remove(dest.Name())
		var parseErr *interfaces.ParseError
		if errors.As(err, &parseErr) {
			WriteError(w, http.StatusUnsupportedMediaType, parseErr.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Failed to submit upload for ingestion")
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, src)
}

// ListHandler returns an owner's sources
func (h *FileHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		WriteError(w, http.StatusBadRequest, "missing owner_id parameter")
		return
	}

	sources, err := h.registry.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list sources")
		WriteError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"sources": sources,
		"count":   len(sources),
	})
}

// GetHandler returns one source by id
func (h *FileHandler) GetHandler(w http.ResponseWriter, r *http.Request, id string) {
	src, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, id, err)
		return
	}
	WriteJSON(w, http.StatusOK, src)
}

// StatusHandler returns the processing status of one source
func (h *FileHandler) StatusHandler(w http.ResponseWriter, r *http.Request, id string) {
	src, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, id, err)
		return
	}

	resp := map[string]any{
		"id":     src.ID,
		"status": src.Status,
	}
	if src.Error != "" {
		resp["error"] = src.Error
	}
	if src.ProcessingFrom != nil {
		resp["processing_from"] = src.ProcessingFrom
	}
	WriteJSON(w, http.StatusOK, resp)
}

// PreviewHandler returns the parsed payload's leading rows (or text head)
func (h *FileHandler) PreviewHandler(w http.ResponseWriter, r *http.Request, id string) {
	src, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, id, err)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("rows"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	payload, err := h.registry.GetPayload(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, id, err)
		return
	}

	resp := map[string]any{
		"id":   src.ID,
		"kind": src.Kind,
	}
	if src.Kind == "text" || payload.Content != "" {
		content := payload.Content
		if len(content) > 2000 {
			content = content[:2000]
		}
		resp["content"] = content
		resp["file_info"] = payload.FileInfo
	} else {
		resp["columns"] = src.Schema
		resp["rows"] = payload.SampleRows(limit)
		resp["row_count"] = payload.RowCount
	}
	WriteJSON(w, http.StatusOK, resp)
}

// DeleteHandler removes a source and its uploaded file
func (h *FileHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.pipeline.Delete(r.Context(), id); err != nil {
		h.writeRegistryError(w, id, err)
		return
	}
	WriteSuccess(w, fmt.Sprintf("source %s deleted", id))
}

// ReprocessHandler re-runs ingestion for a source
func (h *FileHandler) ReprocessHandler(w http.ResponseWriter, r *http.Request, id string) {
	src, err := h.pipeline.Reprocess(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, id, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, src)
}

// ResetStuckHandler re-queues sources stuck in processing
func (h *FileHandler) ResetStuckHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	reset, err := h.pipeline.ResetStuck(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to reset stuck sources")
		WriteError(w, http.StatusInternalServerError, "failed to reset stuck sources")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"reset":  reset,
	})
}

func (h *FileHandler) writeRegistryError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, interfaces.ErrNotFound) {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("source %s not found", id))
		return
	}
	h.logger.Error().Err(err).Str("source_id", id).Msg("Registry operation failed")
	WriteError(w, http.StatusInternalServerError, err.Error())
}
