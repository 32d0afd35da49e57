package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - File ingestion
	mux.HandleFunc("/api/files/upload", s.app.FileHandler.UploadHandler)
	mux.HandleFunc("/api/files/reset-stuck", s.app.FileHandler.ResetStuckHandler)
	mux.HandleFunc("/api/files", s.app.FileHandler.ListHandler)
	mux.HandleFunc("/api/files/", s.handleFileRoutes) // GET/DELETE /{id}, /{id}/status, /{id}/preview, /{id}/reprocess

	// API routes - Feature integration
	mux.HandleFunc("/api/integration/sources", s.app.IntegrationHandler.SourcesHandler)
	mux.HandleFunc("/api/integration/sources/", s.handleIntegrationRoutes)
	mux.HandleFunc("/api/integration/statistics", s.app.IntegrationHandler.StatisticsHandler)
	mux.HandleFunc("/api/integration/notifications", s.app.IntegrationHandler.NotificationsHandler)
	mux.HandleFunc("/api/integration/cleanup", s.app.IntegrationHandler.CleanupHandler)

	// API routes - Feature context (projection reads)
	mux.HandleFunc("/api/context/", s.handleContextRoutes)

	// API routes - Ad hoc query execution
	mux.HandleFunc("/api/query", s.app.QueryHandler.ExecuteHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleFileRoutes routes /api/files/{id} and its subpaths
func (s *Server) handleFileRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/files/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.app.FileHandler.GetHandler(w, r, id)
		case http.MethodDelete:
			s.app.FileHandler.DeleteHandler(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch {
	case parts[1] == "status" && r.Method == http.MethodGet:
		s.app.FileHandler.StatusHandler(w, r, id)
	case parts[1] == "preview" && r.Method == http.MethodGet:
		s.app.FileHandler.PreviewHandler(w, r, id)
	case parts[1] == "reprocess" && r.Method == http.MethodPost:
		s.app.FileHandler.ReprocessHandler(w, r, id)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleIntegrationRoutes routes /api/integration/sources/{id} subpaths
func (s *Server) handleIntegrationRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/integration/sources/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodGet:
		s.app.IntegrationHandler.SourceStatusHandler(w, r, id)
	case len(parts) == 2 && parts[1] == "resync" && r.Method == http.MethodPost:
		s.app.IntegrationHandler.ResyncHandler(w, r, id)
	case len(parts) == 2 && parts[1] == "access" && r.Method == http.MethodPost:
		s.app.IntegrationHandler.TrackAccessHandler(w, r, id)
	case len(parts) == 3 && parts[1] == "features" && r.Method == http.MethodPut:
		s.app.IntegrationHandler.UpdateFeatureHandler(w, r, id, parts[2])
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleContextRoutes routes /api/context/{feature}
func (s *Server) handleContextRoutes(w http.ResponseWriter, r *http.Request) {
	feature := strings.TrimPrefix(r.URL.Path, "/api/context/")
	if feature == "" || strings.Contains(feature, "/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	s.app.ContextHandler.FeatureContextHandler(w, r, feature)
}
