package server

import (
	"encoding/json"
	"net/http"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/version"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Uptime  float64  `json:"uptime"`
	Runs    int      `json:"runs"`
	Current *RunView `json:"current,omitempty"`
	Last    *RunView `json:"last,omitempty"`
}

// ErrorResponse is written for rejected requests.
type ErrorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Resolved(),
		Uptime:    s.status.Uptime().Seconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	runs, current, last := s.status.Snapshot()
	writeJSON(w, http.StatusOK, StatusResponse{
		Uptime:  s.status.Uptime().Seconds(),
		Runs:    runs,
		Current: current,
		Last:    last,
	})
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	writeError(w, http.StatusMethodNotAllowed, errors.ValidationError("invalid HTTP method").
		WithContext("method", r.Method).
		Build())
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err *errors.ClassifiedError) {
	writeJSON(w, code, ErrorResponse{Error: err.Message(), Category: string(err.Category())})
}
