package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dyluth/warren/internal/session"
	"github.com/dyluth/warren/pkg/qd"
	"github.com/dyluth/warren/pkg/store"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrSessionLocked):
		return http.StatusLocked, "locked"
	case store.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, qd.ErrConfiguration):
		return http.StatusBadRequest, "configuration"
	case errors.Is(err, session.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, qd.ErrPrecondition):
		return http.StatusConflict, "precondition"
	case errors.Is(err, qd.ErrPersistence):
		return http.StatusInternalServerError, "persistence"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", zapRequest(r, err)...)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}
