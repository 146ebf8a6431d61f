// Package serve exposes verification artifacts and run history over
// HTTP, for browsing past runs while the pipeline keeps working.
package serve

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voilier/constat/gate"
	"github.com/voilier/constat/runlog"
	"github.com/voilier/constat/shield"
)

// Config for the artifact server.
type Config struct {
	// Addr to listen on, e.g. ":8780".
	Addr string

	// ArtifactsDir is the root served under /artifacts/.
	ArtifactsDir string

	// AuthUser and AuthHash enable basic auth on the API and artifact
	// routes when both are set. AuthHash is a bcrypt hash.
	AuthUser string
	AuthHash string
}

// Server is the read-only surface over run history and artifacts.
type Server struct {
	cfg     Config
	history *runlog.Store
	gate    *gate.Gate
	logger  *slog.Logger
}

// New creates a Server. history may be nil (run endpoints answer 503);
// g may be nil (no pause awareness).
func New(cfg Config, history *runlog.Store, g *gate.Gate, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, history: history, gate: g, logger: logger}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}
	if s.gate != nil {
		r.Use(shield.PauseAware(s.gate, "/healthz"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	protect := func(h http.Handler) http.Handler { return h }
	if s.cfg.AuthUser != "" && s.cfg.AuthHash != "" {
		protect = shield.BasicAuth(s.cfg.AuthUser, s.cfg.AuthHash)
	}

	r.Group(func(r chi.Router) {
		r.Use(protect)

		r.Get("/api/runs", s.handleListRuns)
		r.Get("/api/runs/{id}", s.handleGetRun)

		if s.cfg.ArtifactsDir != "" {
			fs := http.StripPrefix("/artifacts/",
				http.FileServer(http.Dir(s.cfg.ArtifactsDir)))
			r.Handle("/artifacts/*", fs)
		}
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serve: starting", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("serve: stopped")
	return nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, 503, map[string]string{"error": "run history is not configured"})
		return
	}
	limit := queryInt(r, "limit", 50)
	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		shield.GetLogger(r.Context()).Error("serve: list runs", "error", err)
		writeError(w, 500, err)
		return
	}
	if runs == nil {
		runs = []runlog.Run{}
	}
	writeJSON(w, 200, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, 503, map[string]string{"error": "run history is not configured"})
		return
	}
	id := chi.URLParam(r, "id")
	run, routes, err := s.history.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, 404, map[string]string{"error": "run not found"})
			return
		}
		shield.GetLogger(r.Context()).Error("serve: get run", "run_id", id, "error", err)
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]any{"run": run, "routes": routes})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
