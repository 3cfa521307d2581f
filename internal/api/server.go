// Package api exposes the HTTP interface for the link-check service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrover/internal/checker"
	"github.com/JakeFAU/linkrover/internal/config"
	"github.com/JakeFAU/linkrover/internal/controller"
	"github.com/JakeFAU/linkrover/internal/metrics"
	"github.com/JakeFAU/linkrover/internal/report"
	"github.com/JakeFAU/linkrover/internal/update"
)

// ConfigStore is the configuration surface the API exposes.
type ConfigStore interface {
	Properties() []config.Property
	Saved() bool
	UpdateValue(key, value string) error
	Persist() error
	Log() []string
}

// RunController drives run lifecycle operations.
type RunController interface {
	RequestRun(ctx context.Context) (string, error)
	Cancel(runID string) error
	Status() controller.Status
	LastRun() (checker.CheckRun, bool)
}

// UpdateChecker performs release checks.
type UpdateChecker interface {
	Check(ctx context.Context) (update.Result, error)
}

// Options carries the optional collaborators for a Server.
type Options struct {
	Reports  *report.Writer
	Updates  UpdateChecker
	Gatherer prometheus.Gatherer
	APIKey   string
	Logger   *zap.Logger
}

// Server wires HTTP handlers to the configuration store and run controller.
type Server struct {
	router  chi.Router
	cfg     ConfigStore
	ctrl    RunController
	reports *report.Writer
	updates UpdateChecker
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cfg ConfigStore, ctrl RunController, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		ctrl:    ctrl,
		reports: opts.Reports,
		updates: opts.Updates,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	if opts.APIKey != "" {
		r.Use(apiKeyMiddleware(opts.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/config", func(r chi.Router) {
			r.Get("/", s.getConfig)
			r.Put("/{key}", s.updateConfig)
			r.Post("/persist", s.persistConfig)
		})
		r.Get("/log", s.getLog)
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.startRun)
			r.Get("/status", s.runStatus)
			r.Post("/{run_id}/cancel", s.cancelRun)
		})
		r.Route("/report", func(r chi.Router) {
			r.Get("/", s.getReport)
			r.Post("/artifact", s.writeReportArtifacts)
		})
		r.Get("/update", s.checkUpdate)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, time.Since(start))
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(logger, w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(zap.NewNop(), w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
