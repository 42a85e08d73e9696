// Package web provides the optional status HTTP server: a health probe, the
// last scrape result as JSON, and prometheus metrics for the automatic mode.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appLog "github.com/megane2501h/Aikatsu-academy-Schedule/internal/log"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/model"
	enginesync "github.com/megane2501h/Aikatsu-academy-Schedule/internal/sync"
)

// RunStatus summarizes the most recent sync run for /api/records.
type RunStatus struct {
	At        time.Time `json:"at"`
	Success   bool      `json:"success"`
	Created   int       `json:"created"`
	Deleted   int       `json:"deleted"`
	Unchanged int       `json:"unchanged"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
}

// Server exposes /health, /api/records and /metrics. The sync loop feeds it
// through SetRecords and RecordRun; handlers only read the cached state.
type Server struct {
	mux *http.ServeMux
	reg *prometheus.Registry

	mu      sync.RWMutex
	records []model.EventRecord
	lastRun *RunStatus

	syncsTotal     *prometheus.CounterVec
	eventsCreated  prometheus.Counter
	eventsDeleted  prometheus.Counter
	recordsScraped prometheus.Gauge
	lastSuccessTS  prometheus.Gauge
}

// NewServer constructs a Server with its own metrics registry.
func NewServer() *Server {
	s := &Server{
		mux: http.NewServeMux(),
		reg: prometheus.NewRegistry(),
	}

	s.syncsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aikatsusync",
		Name:      "syncs_total",
		Help:      "Sync runs by result",
	}, []string{"result"})
	s.eventsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aikatsusync",
		Name:      "events_created_total",
		Help:      "Remote entries created",
	})
	s.eventsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aikatsusync",
		Name:      "events_deleted_total",
		Help:      "Remote entries deleted",
	})
	s.recordsScraped = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aikatsusync",
		Name:      "records_scraped",
		Help:      "Records extracted by the last scrape",
	})
	s.lastSuccessTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aikatsusync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful sync",
	})
	s.reg.MustRegister(s.syncsTotal, s.eventsCreated, s.eventsDeleted, s.recordsScraped, s.lastSuccessTS)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/records", s.handleRecords)
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, listen string) error {
	srv := &http.Server{Addr: listen, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	appLog.Info("starting status HTTP server", "listen", "http://"+listen)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// SetRecords caches the last scrape result.
func (s *Server) SetRecords(records []model.EventRecord) {
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	s.recordsScraped.Set(float64(len(records)))
}

// RecordRun records a finished sync run. runErr may be nil.
func (s *Server) RecordRun(out enginesync.Outcome, success bool, runErr error) {
	status := &RunStatus{
		At:        time.Now(),
		Success:   success,
		Created:   out.Created,
		Deleted:   out.Deleted,
		Unchanged: out.Unchanged,
		Failed:    out.FailedCreates + out.FailedDeletes,
	}
	if runErr != nil {
		status.Error = runErr.Error()
	}

	s.mu.Lock()
	s.lastRun = status
	s.mu.Unlock()

	result := "failure"
	if success {
		result = "success"
		s.lastSuccessTS.SetToCurrentTime()
	}
	s.syncsTotal.WithLabelValues(result).Inc()
	s.eventsCreated.Add(float64(out.Created))
	s.eventsDeleted.Add(float64(out.Deleted))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// recordsResponse is the JSON response shape for /api/records.
type recordsResponse struct {
	Records []model.EventRecord `json:"records"`
	LastRun *RunStatus          `json:"last_run,omitempty"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.RLock()
	resp := recordsResponse{Records: s.records, LastRun: s.lastRun}
	s.mu.RUnlock()

	if resp.Records == nil {
		resp.Records = []model.EventRecord{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to encode JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
