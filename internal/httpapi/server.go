package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"influxrelay/internal/config"
	"influxrelay/internal/logger"
	"influxrelay/internal/metrics"
	"influxrelay/internal/record"
)

// maxRecordSize bounds the body of an ingested record.
const maxRecordSize = 1 << 20

// Submitter receives ingested records.
type Submitter interface {
	Submit(rec *record.Record) bool
	QueueLen() int
}

// HealthCheck reports whether one component is working.
type HealthCheck func() bool

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

// Deps are the collaborators the HTTP API exposes.
type Deps struct {
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Sink     Submitter
	Checks   map[string]HealthCheck
	Build    BuildInfo
	Logger   *logger.Logger
}

// NewRouter builds the routes: record ingest, status, health and metrics.
// Everything except /health sits behind basic auth when it is enabled.
func NewRouter(cfg config.HTTPConfig, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", healthHandler(deps.Checks))

	r.Group(func(r chi.Router) {
		if cfg.BasicAuth {
			r.Use(chimiddleware.BasicAuth("influxrelay", map[string]string{cfg.Username: cfg.Password}))
		}

		r.Get("/status", statusHandler(deps))
		if cfg.MetricsPath != "" {
			r.Handle(cfg.MetricsPath, promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
		}
		if cfg.Ingest && deps.Sink != nil {
			r.Post("/records/{origin}", ingestHandler(deps.Sink, deps.Logger))
		}
	})

	return r
}

// Server serves the HTTP API.
type Server struct {
	srv    *http.Server
	logger *logger.Logger
}

// NewServer creates the server listening on cfg.Address.
func NewServer(cfg config.HTTPConfig, deps Deps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         cfg.Address,
			Handler:      NewRouter(cfg, deps),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: deps.Logger,
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting http server", "address", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.srv.Shutdown(ctx)
}

func ingestHandler(sink Submitter, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin, err := record.ParseOrigin(chi.URLParam(r, "origin"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRecordSize+1))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
			return
		}
		if len(body) > maxRecordSize {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "record too large"})
			return
		}

		rec, err := record.Decode(body, origin)
		if err != nil {
			log.Debug("rejected ingested record", "origin", origin, "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		accepted := sink.Submit(rec)
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"accepted": accepted,
			"queued":   sink.QueueLen(),
		})
	}
}

func statusHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"version": deps.Build,
			"metrics": deps.Metrics.GetStats(),
			"system": map[string]interface{}{
				"goroutines": runtime.NumGoroutine(),
				"numCPU":     runtime.NumCPU(),
				"goVersion":  runtime.Version(),
			},
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := make(map[string]bool, len(checks))
		healthy := true
		for name, check := range checks {
			ok := check()
			results[name] = ok
			healthy = healthy && ok
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]interface{}{
			"status":    results,
			"timestamp": time.Now().UTC(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
