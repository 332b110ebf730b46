/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/obsrec/internal/logbuffer"
	"github.com/friendsincode/obsrec/internal/scheduler/state"
	"github.com/friendsincode/obsrec/internal/telemetry"
	"github.com/friendsincode/obsrec/internal/version"
)

// StatusSource exposes the scheduler's published state.
type StatusSource interface {
	Snapshot() state.Status
	Recent() []state.RecentRecording
}

// Server is the read-only status HTTP server.
type Server struct {
	logger     zerolog.Logger
	router     chi.Router
	status     StatusSource
	logs       *logbuffer.Buffer
	httpServer *http.Server
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Version string                  `json:"version"`
	Status  state.Status            `json:"status"`
	Recent  []state.RecentRecording `json:"recent"`
}

// New builds a status server listening on addr. logs may be nil.
func New(addr string, status StatusSource, logs *logbuffer.Buffer, logger zerolog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.TracingMiddleware("obsrec-status"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(15 * time.Second))

	srv := &Server{
		logger: logger.With().Str("component", "status_server").Logger(),
		router: router,
		status: status,
		logs:   logs,
	}
	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("status server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("status server shutdown error")
		return err
	}
	return nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"state":  s.status.Snapshot().State,
		})
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		if s.logs != nil {
			r.Get("/logs", s.handleLogs)
		}
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, version.Current())
		})
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	recent := s.status.Recent()
	if recent == nil {
		recent = []state.RecentRecording{}
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Version: version.Version,
		Status:  s.status.Snapshot(),
		Recent:  recent,
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		Search:     q.Get("search"),
		Limit:      100,
		Descending: true,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		params.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		params.Since = t
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": s.logs.Query(params),
		"stats":   s.logs.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
