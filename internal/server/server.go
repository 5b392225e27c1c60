// Package server exposes the thumbnail library over a local HTTP API.
// The popup and full-page viewer UIs are plain clients of this surface.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"thumbvault/internal/capture"
	"thumbvault/internal/domain"
	"thumbvault/internal/export"
	"thumbvault/internal/storage"
	"thumbvault/internal/view"
)

// Server holds the handler dependencies.
type Server struct {
	repo      storage.Repository
	collector capture.Collector
	exporter  *export.Pipeline
	log       logrus.FieldLogger
}

// New creates the API server. collector may be nil when no browser is
// available; the capture endpoint then reports unavailability.
func New(repo storage.Repository, collector capture.Collector, exporter *export.Pipeline, logger logrus.FieldLogger) *Server {
	return &Server{
		repo:      repo,
		collector: collector,
		exporter:  exporter,
		log:       logger.WithField("component", "http"),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/thumbnails", func(r chi.Router) {
			r.Get("/", s.handleListThumbnails)
			r.Post("/", s.handleSaveThumbnail)
			r.Post("/delete", s.handleBulkDelete)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/saved", s.handleIsSaved)
				r.Patch("/", s.handleUpdateThumbnail)
				r.Delete("/", s.handleDeleteThumbnail)
				r.Post("/tags", s.handleAddTag)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)
			r.Patch("/{id}", s.handleUpdateProject)
			r.Delete("/{id}", s.handleDeleteProject)
		})

		r.Delete("/tags/{tag}", s.handleDeleteTag)

		r.Get("/settings", s.handleGetSettings)
		r.Patch("/settings", s.handleUpdateSettings)

		r.Post("/capture", s.handleCapture)
		r.Post("/export", s.handleExport)
	})

	return r
}

// requestLogger logs each request once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSaveThumbnail upserts a thumbnail by video id. Missing image
// and watch URLs are derived from the id.
func (s *Server) handleSaveThumbnail(w http.ResponseWriter, r *http.Request) {
	var thumb domain.Thumbnail
	if err := json.NewDecoder(r.Body).Decode(&thumb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid thumbnail payload")
		return
	}
	if thumb.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if thumb.ThumbnailUrl == "" {
		thumb.ThumbnailUrl = domain.ThumbnailURL(thumb.ID)
	}
	if thumb.Url == "" {
		thumb.Url = domain.WatchURL(thumb.ID)
	}

	if err := s.repo.SaveThumbnail(r.Context(), thumb); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save thumbnail")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": thumb.ID})
}

// handleListThumbnails returns the derived view for the given filter,
// sort, and combined-size selections.
func (s *Server) handleListThumbnails(w http.ResponseWriter, r *http.Request) {
	thumbnails, err := s.repo.ListThumbnails(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list thumbnails")
		return
	}

	q := r.URL.Query()
	sel := view.Selection{
		Tag:     q.Get("tag"),
		Project: q.Get("project"),
		Channel: q.Get("channel"),
	}
	mode := view.SortMode(q.Get("sort"))
	if mode == "" {
		mode = view.SortDate
	}

	combined := 0
	if raw := q.Get("combined"); raw != "" {
		// Bad values fall through to the default layout.
		combined, _ = strconv.Atoi(raw)
	} else {
		settings, err := s.repo.GetSettings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read settings")
			return
		}
		combined = view.CombinedForLayout(view.Layout{
			PerRow: settings.ThumbnailsPerRow,
			Size:   settings.ThumbnailSize,
		})
	}

	writeJSON(w, http.StatusOK, view.Compute(thumbnails, sel, mode, combined))
}

func (s *Server) handleIsSaved(w http.ResponseWriter, r *http.Request) {
	saved, err := s.repo.IsSaved(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check thumbnail")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

func (s *Server) handleUpdateThumbnail(w http.ResponseWriter, r *http.Request) {
	var patch storage.ThumbnailPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch payload")
		return
	}
	if err := s.repo.UpdateThumbnail(r.Context(), chi.URLParam(r, "id"), patch); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update thumbnail")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteThumbnail(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteThumbnail(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete thumbnail")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid delete payload")
		return
	}
	if err := s.repo.DeleteThumbnails(r.Context(), req.IDs); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete thumbnails")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddTag appends a tag to one thumbnail. This is the only write
// path that checks for duplicates.
func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tag == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}

	id := chi.URLParam(r, "id")
	thumbnails, err := s.repo.ListThumbnails(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list thumbnails")
		return
	}
	for _, t := range thumbnails {
		if t.ID != id {
			continue
		}
		if t.HasTag(req.Tag) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		tags := append(append([]string{}, t.Tags...), req.Tag)
		if err := s.repo.UpdateThumbnail(r.Context(), id, storage.ThumbnailPatch{Tags: &tags}); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to add tag")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, http.StatusNotFound, "thumbnail not found")
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.repo.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	project, err := s.repo.CreateProject(r.Context(), req.Name, req.Color)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var patch storage.ProjectPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch payload")
		return
	}
	if err := s.repo.UpdateProject(r.Context(), chi.URLParam(r, "id"), patch); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteTagEverywhere(r.Context(), chi.URLParam(r, "tag")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// settingsResponse carries stored settings plus the combined-size
// value reconstructed from the stored layout pair.
type settingsResponse struct {
	domain.Settings
	CombinedSize int `json:"combinedSize"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.repo.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		Settings: settings,
		CombinedSize: view.CombinedForLayout(view.Layout{
			PerRow: settings.ThumbnailsPerRow,
			Size:   settings.ThumbnailSize,
		}),
	})
}

// handleUpdateSettings merges a settings patch. A combinedSize value
// expands into the (perRow, size) pair before storing.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		storage.SettingsPatch
		CombinedSize *int `json:"combinedSize,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload")
		return
	}

	patch := req.SettingsPatch
	if req.CombinedSize != nil {
		layout := view.LayoutForCombined(*req.CombinedSize)
		patch.ThumbnailsPerRow = &layout.PerRow
		patch.ThumbnailSize = &layout.Size
	}

	if err := s.repo.UpdateSettings(r.Context(), patch); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCapture scrapes a YouTube URL and saves the result in one step.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "capture is not available")
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	meta, err := s.collector.Capture(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadGateway, "capture failed")
		return
	}

	thumb := domain.Thumbnail{
		ID:           meta.VideoID,
		Title:        meta.Title,
		ChannelName:  meta.ChannelName,
		ThumbnailUrl: domain.ThumbnailURL(meta.VideoID),
		Url:          domain.WatchURL(meta.VideoID),
		Tags:         meta.Tags,
		Projects:     []string{},
	}
	if err := s.repo.SaveThumbnail(r.Context(), thumb); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save thumbnail")
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

// handleExport downloads the selected thumbnails' images serially and
// reports how many completed.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	thumbnails, err := s.repo.ListThumbnails(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list thumbnails")
		return
	}
	wanted := make(map[string]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		wanted[id] = struct{}{}
	}
	items := make([]export.Item, 0, len(req.IDs))
	for _, t := range thumbnails {
		if _, ok := wanted[t.ID]; ok {
			items = append(items, export.Item{URL: t.ThumbnailUrl, Title: t.DisplayTitle(), ID: t.ID})
		}
	}

	completed := 0
	if err := s.exporter.DownloadAll(r.Context(), items, func(int, int) { completed++ }); err != nil {
		writeError(w, http.StatusInternalServerError, "export aborted")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"completed": completed, "total": len(items)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Run serves the API until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.WithField("addr", addr).Info("HTTP API listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
