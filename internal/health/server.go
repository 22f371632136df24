// Package health serves liveness and metrics endpoints while a trial runs.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is the coarse health of the driver.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded" // backing off on a rate limit
	StatusCritical Status = "critical" // trial failed or ledger unreachable
)

// Report describes the trial currently being driven.
type Report struct {
	Status     Status    `json:"status"`
	TrialID    string    `json:"trial_id,omitempty"`
	State      string    `json:"state"`
	Detail     string    `json:"detail,omitempty"`
	Attempt    int       `json:"attempt"`
	Credential string    `json:"credential,omitempty"` // masked
	Ledger     string    `json:"ledger,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Reporter produces health reports.
type Reporter interface {
	Report(ctx context.Context) Report
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	reporter Reporter
	server   *http.Server
}

// NewServer creates a new health server.
func NewServer(reporter Reporter, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		reporter: reporter,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler exposes the routes without a listener.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.reporter.Report(r.Context())

	response := map[string]string{"status": string(report.Status)}
	w.Header().Set("Content-Type", "application/json")

	if report.Status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := s.reporter.Report(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
