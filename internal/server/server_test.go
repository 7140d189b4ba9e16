package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/session"
	"github.com/dyluth/warren/internal/viewport"
	"github.com/dyluth/warren/pkg/store"
)

type testEnv struct {
	handler http.Handler
	client  *store.Client
	mr      *miniredis.Miniredis
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := store.NewClient(&redis.Options{Addr: mr.Addr()}, "test-ns")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	seed := uint64(5)
	cfg := &config.Config{
		Version:  config.Version,
		Model:    &config.ModelConfig{Provider: config.ProviderStatic},
		Mutation: &config.MutationConfig{Seed: &seed},
		Render:   &config.RenderConfig{TileSize: 16},
	}
	require.NoError(t, cfg.Validate())

	srv := New(session.NewService(cfg, client), client, nil)
	return &testEnv{handler: srv.Handler(), client: client, mr: mr}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, HealthResponse{Status: "healthy", Namespace: "test-ns", Redis: "connected"}, decode[HealthResponse](t, rec))

	env.mr.Close()
	rec = env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode[HealthResponse](t, rec).Status)
}

func TestMetrics(t *testing.T) {
	env := setup(t)
	env.do(t, http.MethodGet, "/healthz", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "warren_http_requests_total")
}

func TestCreateAndGetSession(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", `{"session_id":"abc"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[SessionSummary](t, rec)
	assert.Equal(t, "abc", created.SessionID)
	assert.Equal(t, 1, created.Steps)
	assert.Equal(t, viewport.NoClick, created.LastClicked)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions", `{"session_id":"abc"}`)
	assert.Equal(t, http.StatusOK, rec.Code, "existing session is not recreated")

	rec = env.do(t, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, decode[SessionSummary](t, rec).SessionID, 36)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions", `{"session_id":"a:b"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", decode[SessionSummary](t, rec).SessionID)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions?prefix=ab", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"abc"}, decode[map[string][]string](t, rec)["sessions"])
}

func TestRunViewAndTiles(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/s1/run", `{"init_steps":1,"mutation_steps":1,"batch_size":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decode[RunResponse](t, rec)
	assert.Equal(t, 2, run.Session.Steps)
	assert.Greater(t, run.Session.Occupied, 0)
	assert.Greater(t, run.Best.Fitness, 0.0)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/s1/view", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[session.View](t, rec)
	assert.Equal(t, 1, view.Step)
	assert.Len(t, view.Cells, 25)
	assert.Equal(t, []string{"1.00", "1.10", "1.20", "1.30", "1.40"}, view.Rows)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/s1/view?step=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[session.View](t, rec).Step)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/s1/view?step=9", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/s1/tiles/3.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/s1/tiles/99.png", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRun_Errors(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/s1/run", `{"batch_size":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "configuration", decode[ErrorResponse](t, rec).Kind)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/s1/run", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	lock, err := env.client.AcquireSessionLock(context.Background(), "s1", time.Minute)
	require.NoError(t, err)
	rec = env.do(t, http.MethodPost, "/api/v1/sessions/s1/run", "")
	assert.Equal(t, http.StatusLocked, rec.Code)
	require.NoError(t, env.client.ReleaseSessionLock(context.Background(), lock))
}

func TestClickRecenterStep(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/s1/click", `{"index":24}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 24, decode[SessionSummary](t, rec).LastClicked)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/s1/recenter", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[SessionSummary](t, rec)
	assert.Equal(t, 2, sum.XStart)
	assert.InDelta(t, 1.2, sum.YStart, 1e-9)
	assert.Equal(t, 12, sum.LastClicked)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/s1/click", `{"index":25}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/s1/click", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/s1/step", `{"step":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, decode[SessionSummary](t, rec).SelectedStep)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/s1/step", `{"step":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/s1/step", `{"step":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[SessionSummary](t, rec).SelectedStep)
}

func TestCheckpoint(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/api/v1/checkpoint/save", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "session parameter is required")

	rec = env.do(t, http.MethodPost, "/api/v1/checkpoint/load?session=s2", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "persistence", decode[ErrorResponse](t, rec).Kind)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/s1/run", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/checkpoint/save?session=s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"saved": true}, decode[map[string]bool](t, rec))

	rec = env.do(t, http.MethodPost, "/api/v1/checkpoint/load?session=s2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[SessionSummary](t, rec)
	assert.Equal(t, 1, loaded.Steps)
	assert.Greater(t, loaded.Occupied, 0)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrSessionLocked, http.StatusLocked},
		{redis.Nil, http.StatusNotFound},
		{session.ErrInvalidArgument, http.StatusBadRequest},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
