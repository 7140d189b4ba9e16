package server

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	Namespace string `json:"namespace"`
	Redis     string `json:"redis,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleHealth answers 200 while the session store responds to a ping and 503
// otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "unhealthy",
			Namespace: s.client.Namespace(),
			Redis:     "disconnected",
			Error:     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Namespace: s.client.Namespace(),
		Redis:     "connected",
	})
}
