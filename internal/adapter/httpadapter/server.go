package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/disaster-merge-service/internal/domain"
	"github.com/couchcryptid/disaster-merge-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotProvider returns the latest merged snapshot, or nil before the first refresh.
type SnapshotProvider interface {
	Snapshot() *pipeline.Snapshot
}

// Server exposes health, readiness, metrics, and the merged snapshot over HTTP.
type Server struct {
	httpServer *http.Server
	snapshots  SnapshotProvider
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, /events,
// /events/{id} and /stats routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, snapshots SnapshotProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		snapshots: snapshots,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /events/{id}", s.handleEvent)
	mux.HandleFunc("GET /stats", s.handleStats)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type eventsResponse struct {
	RunID       string               `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Count       int                  `json:"count"`
	Events      []domain.EventRecord `json:"events"`
}

type statsResponse struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Stats       domain.Stats            `json:"stats"`
	Clusters    []domain.Cluster        `json:"clusters"`
	Sources     []pipeline.SourceReport `json:"sources"`
}

// handleEvents serves the merged list, most recent first. Optional filters:
// category, source, and limit (positive integer).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	category := domain.Category(q.Get("category"))
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, "unknown category "+strconv.Quote(string(category)))
		return
	}
	source := q.Get("source")
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events := make([]domain.EventRecord, 0, len(snap.Result.Records))
	for _, rec := range snap.Result.Records {
		if category != "" && rec.Category != category {
			continue
		}
		if source != "" && rec.Source != source {
			continue
		}
		events = append(events, rec)
		if limit > 0 && len(events) == limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		RunID:       snap.RunID,
		GeneratedAt: snap.GeneratedAt,
		Count:       len(events),
		Events:      events,
	})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}
	id := r.PathValue("id")
	for _, rec := range snap.Result.Records {
		if rec.ID == id {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	writeError(w, http.StatusNotFound, "event "+strconv.Quote(id)+" not found")
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}
	clusters := snap.Result.Clusters
	if clusters == nil {
		clusters = []domain.Cluster{}
	}
	writeJSON(w, http.StatusOK, statsResponse{
		RunID:       snap.RunID,
		GeneratedAt: snap.GeneratedAt,
		Stats:       snap.Result.Stats,
		Clusters:    clusters,
		Sources:     snap.Sources,
	})
}

// latest writes a 503 and returns false until the first snapshot exists.
func (s *Server) latest(w http.ResponseWriter) (*pipeline.Snapshot, bool) {
	snap := s.snapshots.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no merged snapshot yet")
		return nil, false
	}
	return snap, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
