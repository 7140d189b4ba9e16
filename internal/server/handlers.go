package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/floorplan"
	"github.com/dyluth/warren/internal/orchestrator"
	"github.com/dyluth/warren/internal/session"
	"github.com/dyluth/warren/pkg/qd"
	"github.com/dyluth/warren/pkg/store"
)

// APIKeyHeader carries the operator's model credential.
const APIKeyHeader = "X-Api-Key"

// SessionSummary describes a session without its snapshots.
type SessionSummary struct {
	SessionID    string   `json:"session_id"`
	Steps        int      `json:"steps"`
	SelectedStep *int     `json:"selected_step,omitempty"`
	BatchSize    int      `json:"batch_size"`
	XStart       int      `json:"x_start"`
	YStart       float64  `json:"y_start"`
	LastClicked  int      `json:"last_clicked"`
	Occupied     int      `json:"occupied"`
	BestFitness  *float64 `json:"best_fitness,omitempty"`
	CreatedAtMs  int64    `json:"created_at_ms"`
	UpdatedAtMs  int64    `json:"updated_at_ms"`
}

// Summarize builds a SessionSummary from a record.
func Summarize(r *store.SessionRecord) SessionSummary {
	sum := SessionSummary{
		SessionID:    r.SessionID,
		Steps:        len(r.Steps),
		SelectedStep: r.SelectedStep,
		BatchSize:    r.BatchSize,
		XStart:       r.Viewport.XStart,
		YStart:       r.Viewport.YStart,
		LastClicked:  r.Viewport.LastClicked,
		CreatedAtMs:  r.CreatedAtMs,
		UpdatedAtMs:  r.UpdatedAtMs,
	}
	if r.Population != nil && r.Population.Genomes != nil {
		sum.Occupied = r.Population.Genomes.Occupied()
		for _, c := range r.Population.Genomes.Cells {
			if c != nil && (sum.BestFitness == nil || c.Fitness > *sum.BestFitness) {
				f := c.Fitness
				sum.BestFitness = &f
			}
		}
	}
	return sum
}

// RunRequest is the body of POST /sessions/{id}/run. Zero-valued fields
// fall back to the configured defaults.
type RunRequest struct {
	InitSteps     *int   `json:"init_steps,omitempty"`
	MutationSteps *int   `json:"mutation_steps,omitempty"`
	BatchSize     *int   `json:"batch_size,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
}

// RunResponse reports a completed run.
type RunResponse struct {
	Best    qd.Elite       `json:"best"`
	Session SessionSummary `json:"session"`
}

type clickRequest struct {
	Index *int `json:"index"`
}

type stepRequest struct {
	Step *int `json:"step"` // null follows the latest step
}

type credentialRequest struct {
	APIKey string `json:"api_key,omitempty"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.client.ScanSessions(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = session.NewSessionID()
	}

	var summary SessionSummary
	created := false
	err := s.svc.Do(r.Context(), req.SessionID, func(sess *session.Session) error {
		created = sess.Created()
		summary = Summarize(sess.Record())
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, summary)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	record, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Summarize(record))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	cfg := s.svc.Config()
	params := orchestrator.RunParams{
		InitSteps:     *cfg.Run.InitSteps,
		MutationSteps: *cfg.Run.MutationSteps,
		BatchSize:     cfg.Run.BatchSize,
	}
	if req.InitSteps != nil {
		params.InitSteps = *req.InitSteps
	}
	if req.MutationSteps != nil {
		params.MutationSteps = *req.MutationSteps
	}
	if req.BatchSize != nil {
		params.BatchSize = *req.BatchSize
	}

	credential := credentialFrom(r, req.APIKey)
	var resp RunResponse
	err := s.svc.Do(r.Context(), chi.URLParam(r, "id"), func(sess *session.Session) error {
		best, err := sess.Run(r.Context(), params, credential)
		resp = RunResponse{Best: best, Session: Summarize(sess.Record())}
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Index == nil {
		s.writeError(w, r, fmt.Errorf("index is required: %w", session.ErrInvalidArgument))
		return
	}
	s.mutate(w, r, func(sess *session.Session) error {
		return sess.Click(*req.Index)
	})
}

func (s *Server) handleRecenter(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(sess *session.Session) error {
		return sess.Recenter()
	})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.mutate(w, r, func(sess *session.Session) error {
		return sess.SelectStep(req.Step)
	})
}

// mutate applies fn under the session lock and answers with the summary.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*session.Session) error) {
	s.mutateID(w, r, chi.URLParam(r, "id"), fn)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	step, err := stepParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	record, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.svc.ViewRecord(record, step)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("invalid tile index: %w", session.ErrInvalidArgument))
		return
	}
	step, err := stepParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	record, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	img, err := s.svc.TileRecord(record, step, index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := floorplan.EncodePNG(w, img); err != nil {
		s.logger.Warn("failed to write tile", zapRequest(r, err)...)
	}
}

func (s *Server) handleCheckpointSave(w http.ResponseWriter, r *http.Request) {
	id, err := sessionParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var saved bool
	err = s.svc.Do(r.Context(), id, func(sess *session.Session) error {
		var err error
		saved, err = sess.SaveCheckpoint(r.Context())
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

func (s *Server) handleCheckpointLoad(w http.ResponseWriter, r *http.Request) {
	id, err := sessionParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req credentialRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	credential := credentialFrom(r, req.APIKey)

	s.mutateID(w, r, id, func(sess *session.Session) error {
		return sess.LoadCheckpoint(r.Context(), credential)
	})
}

func (s *Server) mutateID(w http.ResponseWriter, r *http.Request, id string, fn func(*session.Session) error) {
	var summary SessionSummary
	err := s.svc.Do(r.Context(), id, func(sess *session.Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		summary = Summarize(sess.Record())
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, session.ErrInvalidArgument)
	}
	return nil
}

func stepParam(r *http.Request) (*int, error) {
	raw := r.URL.Query().Get("step")
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid step %q: %w", raw, session.ErrInvalidArgument)
	}
	return &n, nil
}

func sessionParam(r *http.Request) (string, error) {
	id := r.URL.Query().Get("session")
	if id == "" {
		return "", fmt.Errorf("session query parameter is required: %w", session.ErrInvalidArgument)
	}
	return id, nil
}

func credentialFrom(r *http.Request, bodyKey string) string {
	if bodyKey != "" {
		return bodyKey
	}
	return strings.TrimSpace(r.Header.Get(APIKeyHeader))
}

func zapRequest(r *http.Request, err error) []zap.Field {
	return []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	}
}
