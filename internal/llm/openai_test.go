package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dyluth/warren/pkg/qd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCredential(t *testing.T) {
	t.Setenv("WARREN_TEST_KEY", "from-env")

	key, err := ResolveCredential("explicit", "WARREN_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "explicit", key)

	key, err = ResolveCredential("", "WARREN_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	t.Setenv("WARREN_TEST_KEY", "")
	_, err = ResolveCredential("  ", "WARREN_TEST_KEY")
	require.Error(t, err)
	assert.True(t, qd.IsConfiguration(err))
}

func TestOpenAIDecoder_BatchDecode(t *testing.T) {
	var gotN int
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotN = int(body["n"].(float64))
		gotPrompt = body["prompt"].(string)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "text_completion",
			"model":  "gpt-3.5-turbo-instruct",
			"choices": []map[string]any{
				{"index": 1, "text": " kitchen: (1,1)"},
				{"index": 0, "text": " bedroom1: (0,0)"},
			},
		})
	}))
	defer server.Close()

	dec, err := NewOpenAIDecoder("sk-test", Options{BaseURL: server.URL + "/v1", MaxTokens: 64}, nil)
	require.NoError(t, err)

	out, err := dec.BatchDecode(context.Background(), "[prompt] flat [layout]", 2)
	require.NoError(t, err)

	assert.Equal(t, 2, gotN)
	assert.Equal(t, "[prompt] flat [layout]", gotPrompt)
	assert.Equal(t, []string{"[prompt] flat [layout] bedroom1: (0,0)", "[prompt] flat [layout] kitchen: (1,1)"}, out)
}

func TestOpenAIDecoder_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-2",
			"object":  "text_completion",
			"choices": []map[string]any{{"index": 0, "text": " kitchen: (0,0)"}},
		})
	}))
	defer server.Close()

	dec, err := NewOpenAIDecoder("sk-test", Options{BaseURL: server.URL + "/v1", Temperature: 0}, nil)
	require.NoError(t, err)
	_, err = dec.BatchDecode(context.Background(), "p", 1)
	require.NoError(t, err)

	require.Contains(t, body, "temperature")
	assert.InDelta(t, 0, body["temperature"].(float64), 1e-6)
}

func TestOpenAIDecoder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	dec, err := NewOpenAIDecoder("sk-test", Options{BaseURL: server.URL + "/v1"}, nil)
	require.NoError(t, err)

	_, err = dec.BatchDecode(context.Background(), "p", 1)
	require.Error(t, err)
	assert.False(t, qd.IsConfiguration(err))
}

func TestNewOpenAIDecoder_MissingCredential(t *testing.T) {
	t.Setenv(DefaultCredentialEnv, "")
	_, err := NewOpenAIDecoder("", Options{}, nil)
	require.Error(t, err)
	assert.True(t, qd.IsConfiguration(err))
}

func TestStaticDecoder(t *testing.T) {
	dec := &StaticDecoder{Completions: []string{" a", " b"}}
	out, err := dec.BatchDecode(context.Background(), "p", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"p a", "p b", "p a"}, out)

	_, err = (&StaticDecoder{}).BatchDecode(context.Background(), "p", 1)
	assert.Error(t, err)
}
