package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.With(jsonContentType).Get("/status", s.handleStatus)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type statusResponse struct {
	Text            string    `json:"text"`
	Active          bool      `json:"active"`
	UpdatedAt       time.Time `json:"updated_at"`
	IntervalSeconds float64   `json:"interval_seconds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "sync loop not running")
		return
	}
	st := s.status.LastStatus()
	writeJSON(w, http.StatusOK, statusResponse{
		Text:            st.Text,
		Active:          st.Active,
		UpdatedAt:       st.UpdatedAt,
		IntervalSeconds: s.status.Interval().Seconds(),
	})
}
