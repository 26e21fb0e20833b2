// Package web serves the operational HTTP endpoints next to the LDAP
// listener: liveness, snapshot status and Prometheus metrics.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"f0oster/oktaldap/directory"
)

// SnapshotSource yields the currently published snapshot.
type SnapshotSource interface {
	Current() *directory.Snapshot
}

// Server handles HTTP requests for health and status.
type Server struct {
	source SnapshotSource
	mux    *http.ServeMux
	addr   string
	logger *slog.Logger
}

// NewServer creates the status server.
func NewServer(source SnapshotSource, addr string, logger *slog.Logger) *Server {
	s := &Server{
		source: source,
		mux:    http.NewServeMux(),
		addr:   addr,
		logger: logger.With(slog.String("component", "web")),
	}
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

// ServeHTTP dispatches to the registered routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start blocks serving HTTP until the listener fails.
func (s *Server) Start() error {
	s.logger.Info("status server listening", slog.String("addr", s.addr))
	return http.ListenAndServe(s.addr, s)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.source.Current() == nil {
		http.Error(w, "no directory snapshot published", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// statusResponse summarizes the published snapshot.
type statusResponse struct {
	Entries    int       `json:"entries"`
	Users      int       `json:"users"`
	Groups     int       `json:"groups"`
	Containers int       `json:"containers"`
	Collisions int       `json:"collisions"`
	BuiltAt    time.Time `json:"built_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Current()
	if snap == nil {
		http.Error(w, "no directory snapshot published", http.StatusServiceUnavailable)
		return
	}

	resp := statusResponse{
		Entries:    snap.Len(),
		Users:      snap.Stats.Users,
		Groups:     snap.Stats.Groups,
		Containers: snap.Stats.Containers,
		Collisions: snap.Stats.Collisions,
		BuiltAt:    snap.Stats.BuiltAt,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode status response", slog.String("error", err.Error()))
	}
}
