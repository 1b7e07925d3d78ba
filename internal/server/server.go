// Package server exposes the AOI selection pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonjones-gis/lidar-picker/internal/core/config"
	"github.com/jonjones-gis/lidar-picker/internal/core/health"
	"github.com/jonjones-gis/lidar-picker/internal/core/middleware"
	"github.com/jonjones-gis/lidar-picker/internal/core/observability"
	"github.com/jonjones-gis/lidar-picker/internal/footprint"
	"github.com/jonjones-gis/lidar-picker/internal/job"
	"github.com/jonjones-gis/lidar-picker/internal/ranking"
	"github.com/jonjones-gis/lidar-picker/internal/selection"
	"github.com/jonjones-gis/lidar-picker/internal/session"
	"github.com/jonjones-gis/lidar-picker/internal/shapeupload"
)

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	source  *footprint.Source
	sess    *session.Session
	sel     *selection.Manager
	ranker  *ranking.Controller
	builder *job.Builder
}

func New(cfg config.Config, logger *slog.Logger, source *footprint.Source, sess *session.Session, sel *selection.Manager, ranker *ranking.Controller, builder *job.Builder) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		sess:    sess,
		sel:     sel,
		ranker:  ranker,
		builder: builder,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(s.logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/footprints", s.instrument("/footprints", s.handleFootprints))
	r.Post("/upload_shapefile_parts", s.instrument("/upload_shapefile_parts", s.handleUpload))
	r.Post("/selection/toggle", s.instrument("/selection/toggle", s.handleToggle))
	r.Get("/selection", s.instrument("/selection", s.handleSelection))
	r.Post("/rank/move", s.instrument("/rank/move", s.handleRankMove))
	r.Post("/rank/confirm", s.instrument("/rank/confirm", s.handleRankConfirm))
	r.Post("/rank/cancel", s.instrument("/rank/cancel", s.handleRankCancel))
	r.Get("/rank", s.instrument("/rank", s.handleRankState))
	r.Post("/jobs", s.instrument("/jobs", s.handleSubmit))

	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

// GET /footprints?category= loads the full collection, renders it, and
// returns the list-view rows. Load failures surface as errors, never
// crashes.
func (s *Server) handleFootprints(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	coll, err := s.source.Fetch(r.Context(), category)
	if err != nil {
		s.logger.Error("footprint load failed", "err", err)
		http.Error(w, "could not load dataset footprints: "+err.Error(), http.StatusBadGateway)
		return
	}
	s.sess.LoadFootprints(coll)
	s.sel.Refresh()
	writeJSON(w, http.StatusOK, footprintRows(coll))
}

// POST /upload_shapefile_parts accepts the four shapefile parts as a
// multipart body, normalizes them into the AOI, and filters the current
// collection against it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		observability.IncUpload("too_large")
		http.Error(w, "File too large or unreadable. Max size is 20 MB.", http.StatusRequestEntityTooLarge)
		return
	}

	var parts []shapeupload.Part
	if r.MultipartForm != nil {
		for _, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				f, err := fh.Open()
				if err != nil {
					http.Error(w, "unreadable upload part: "+fh.Filename, http.StatusBadRequest)
					return
				}
				data, err := io.ReadAll(f)
				_ = f.Close()
				if err != nil {
					http.Error(w, "unreadable upload part: "+fh.Filename, http.StatusBadRequest)
					return
				}
				parts = append(parts, shapeupload.Part{Filename: fh.Filename, Data: data})
			}
		}
	}

	res, err := shapeupload.Normalize(parts, s.cfg.MaxAttrColumns)
	if err != nil {
		if errors.Is(err, shapeupload.ErrValidation) {
			observability.IncUpload("validation")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		observability.IncUpload("parse_error")
		http.Error(w, "Failed to read shapefile: "+err.Error(), http.StatusBadRequest)
		return
	}
	observability.IncUpload("ok")

	s.sess.SetAOI(res.Collection)
	filtered := s.sess.FilterByAOI(res.Collection, s.sess.Collection())
	s.sel.Refresh()

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"layer":    map[string]any{"name": res.Name, "geojson": res.Collection},
		"warnings": warnings,
		"matched":  filtered.Len(),
	})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &body); err != nil || body.ID == "" {
		http.Error(w, "missing required field: id", http.StatusBadRequest)
		return
	}
	s.sel.Toggle(body.ID)
	writeJSON(w, http.StatusOK, map[string]any{"selected": s.sel.Selected()})
}

func (s *Server) handleSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"selected": s.sel.Selected()})
}

func (s *Server) handleRankState(w http.ResponseWriter, _ *http.Request) {
	sess, ok := s.ranker.Active()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"open": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"open": true, "items": sess.Items()})
}

// POST /rank/move accepts either {"index":i,"dir":"up"|"down"} or the
// pointer-drag form {"from":i,"over":j,"below":bool}.
func (s *Server) handleRankMove(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ranker.Active()
	if !ok {
		http.Error(w, "no ranking session open", http.StatusConflict)
		return
	}
	var body struct {
		Index *int   `json:"index"`
		Dir   string `json:"dir"`
		From  *int   `json:"from"`
		Over  *int   `json:"over"`
		Below bool   `json:"below"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, "invalid move request", http.StatusBadRequest)
		return
	}
	switch {
	case body.Index != nil && body.Dir == "up":
		sess.MoveUp(*body.Index)
	case body.Index != nil && body.Dir == "down":
		sess.MoveDown(*body.Index)
	case body.From != nil && body.Over != nil:
		sess.DragOver(*body.From, *body.Over, body.Below)
	default:
		http.Error(w, "invalid move request", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": sess.Items()})
}

func (s *Server) handleRankConfirm(w http.ResponseWriter, _ *http.Request) {
	sess, ok := s.ranker.Active()
	if !ok {
		http.Error(w, "no ranking session open", http.StatusConflict)
		return
	}
	sess.Confirm()
	writeJSON(w, http.StatusOK, map[string]any{"status": "confirmed"})
}

func (s *Server) handleRankCancel(w http.ResponseWriter, _ *http.Request) {
	sess, ok := s.ranker.Active()
	if !ok {
		http.Error(w, "no ranking session open", http.StatusConflict)
		return
	}
	sess.Cancel()
	writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

// POST /jobs submits the extraction job. With more than one dataset
// selected this blocks while the ranking dialog (driven through the
// /rank endpoints) resolves.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OutputCRS string `json:"outputCRS"`
		Stitch    bool   `json:"stitch"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, "invalid job request", http.StatusBadRequest)
		return
	}

	labels := s.sel.Labels(s.sess.Collection())
	items := make([]ranking.Item, 0, len(labels))
	for _, l := range labels {
		items = append(items, ranking.Item{ID: l[0], Label: l[1]})
	}

	out, err := s.builder.Submit(r.Context(), job.Input{
		AOI:      s.sess.AOI(),
		Selected: items,
		RawCRS:   body.OutputCRS,
		Stitch:   body.Stitch,
		Ranker:   ranking.Interactive{Controller: s.ranker},
	})
	switch {
	case err == nil:
	case errors.Is(err, ranking.ErrCancelled):
		writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
		return
	case errors.Is(err, job.ErrInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, job.ErrNoAOI), errors.Is(err, job.ErrNoSelection), errors.Is(err, job.ErrNoCRS):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	if out.Ready {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "download_url": out.DownloadURL})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "submitted", "message": out.Message})
}
