// CLAUDE:SUMMARY HTTP API for capture jobs: submit, poll status, list and download screenshots.
// Package server exposes the job service over HTTP and MCP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pagelens/pagelens/jobs"
)

// Config tunes the HTTP server.
type Config struct {
	Addr   string // default :8480
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8480"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server serves the job API.
type Server struct {
	cfg    Config
	jobs   *jobs.Service
	router *chi.Mux
}

// New builds the router around a job service.
func New(svc *jobs.Service, cfg Config) *Server {
	cfg.defaults()

	s := &Server{cfg: cfg, jobs: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/screenshots", s.handleScreenshots)
	})
	r.Get("/api/screenshots/{id}", s.handleScreenshotFile)

	s.router = r
	return s
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.cfg.Logger.Info("server: listening", "addr", s.cfg.Addr)

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url required", http.StatusBadRequest)
		return
	}

	job, err := s.jobs.Submit(r.Context(), req)
	if err != nil {
		s.cfg.Logger.Error("server: submit failed", "error", err)
		http.Error(w, "submit failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.jobs.List(r.Context(), 50)
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleScreenshots(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	shots, err := s.jobs.Screenshots(r.Context(), id)
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	if shots == nil {
		shots = []*jobs.Screenshot{}
	}
	writeJSON(w, http.StatusOK, shots)
}

func (s *Server) handleScreenshotFile(w http.ResponseWriter, r *http.Request) {
	shot, err := s.jobs.Screenshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if shot == nil {
		http.Error(w, "screenshot not found", http.StatusNotFound)
		return
	}

	data, err := os.ReadFile(shot.Path)
	if err != nil {
		s.cfg.Logger.Error("server: read screenshot", "path", shot.Path, "error", err)
		http.Error(w, "screenshot unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
