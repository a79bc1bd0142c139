// Package server exposes a classifier as an HTTP classification service.
// segcut's http backend is its client.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"segcut/internal/classify"
	"segcut/internal/metrics"
	"segcut/internal/track"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const (
	maxBodyBytes    = 256 << 20
	shutdownTimeout = 5 * time.Second
	metricsPrefix   = "segcut"
)

// Server answers POST /classify with the label of the uploaded WAV.
type Server struct {
	router     *chi.Mux
	classifier classify.Classifier
	logger     *logrus.Logger
	counters   metrics.Counters
	startedAt  time.Time
	maxBody    int64
}

// New builds the router around c.
func New(c classify.Classifier, logger *logrus.Logger) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		classifier: c,
		logger:     logger,
		startedAt:  time.Now(),
		maxBody:    maxBodyBytes,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.health)
	s.router.Get("/metrics", s.metrics)
	s.router.Post("/classify", s.classify)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Counters returns the service's classification counters.
func (s *Server) Counters() *metrics.Counters { return &s.counters }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("classification service listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime_sec": time.Since(s.startedAt).Seconds(),
	})
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := s.counters.WriteText(w, metricsPrefix); err != nil {
		s.logger.Warnf("write metrics: %v", err)
	}
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, classify.Response{Label: "unknown", Detail: err.Error()})
		return
	}
	tl, err := track.Load("request", bytes.NewReader(body))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, classify.Response{Label: "unknown", Detail: err.Error()})
		return
	}
	index, _ := strconv.Atoi(r.Header.Get("X-Segcut-Chunk"))
	l, err := classify.Run(r.Context(), s.classifier, track.Whole(tl, index))
	s.counters.Observe(l)
	if err != nil {
		s.logger.WithField("chunk", index+1).Warn(err)
		writeJSON(w, http.StatusUnprocessableEntity, classify.Response{Label: l.String(), Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, classify.Response{Label: l.String()})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
