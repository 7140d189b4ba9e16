package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warren.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MinimalConfigGetsDefaults(t *testing.T) {
	config, err := Load(writeConfig(t, `version: "1.0"`))
	require.NoError(t, err)

	assert.Equal(t, 5, config.Viewport.Width)
	assert.Equal(t, 5, config.Viewport.Height)
	assert.Equal(t, 0.1, config.Viewport.YStep)
	assert.Equal(t, 1.0, *config.Viewport.YStart)
	assert.Equal(t, DefaultTypologies, config.Archive.Typologies)
	assert.Equal(t, 0.5, config.YAxis().Min)
	assert.Equal(t, 20, config.YAxis().Bins)
	assert.Equal(t, 2, config.Run.BatchSize)
	assert.Equal(t, 1, *config.Run.InitSteps)
	assert.Equal(t, 1, *config.Run.MutationSteps)
	assert.Equal(t, 256, config.Render.TileSize)
	assert.Equal(t, "gpt-3.5-turbo-instruct", config.Model.Name)
	assert.Equal(t, 256, config.Model.MaxTokens)
	assert.InDelta(t, 0.9, *config.Model.Temperature, 1e-6)
	assert.Equal(t, "OPENAI_API_KEY", config.Model.CredentialEnv)
	assert.Equal(t, 10*time.Minute, config.Redis.LockTTL)
	assert.Equal(t, CheckpointRedis, config.Checkpoint.Backend)
	assert.NotEmpty(t, config.Mutation.Prompts)
	assert.Nil(t, config.Mutation.Seed)
}

func TestLoad_ExplicitValues(t *testing.T) {
	config, err := Load(writeConfig(t, `version: "1.0"
redis:
  namespace: lab
  lock_ttl: 30s
viewport:
  width: 3
  height: 2
  y_start: 0
archive:
  typologies: ["1b1b", "2b1b", "2b2b"]
  y_axis: {min: 0, bin_width: 0.25, bins: 8}
run:
  init_steps: 0
  batch_size: 4
mutation:
  prompts: ["[prompt] a flat [layout]"]
  seed: 42
model:
  provider: static
  temperature: 0
checkpoint:
  backend: file
  dir: /tmp/ckpt
`))
	require.NoError(t, err)

	assert.Equal(t, "lab", config.Redis.Namespace)
	assert.Equal(t, 30*time.Second, config.Redis.LockTTL)
	assert.Equal(t, 3, config.Viewport.Width)
	assert.Equal(t, 0.0, *config.Viewport.YStart, "explicit zero survives defaults")
	assert.Equal(t, 0.0, config.YAxis().Min)
	assert.Equal(t, 8, config.YAxis().Bins)
	assert.Equal(t, 0, *config.Run.InitSteps)
	assert.Equal(t, 1, *config.Run.MutationSteps)
	assert.Equal(t, uint64(42), *config.Mutation.Seed)
	assert.Equal(t, ProviderStatic, config.Model.Provider)
	assert.Zero(t, *config.Model.Temperature, "explicit zero temperature is greedy decoding")
	assert.Equal(t, "/tmp/ckpt", config.Checkpoint.Dir)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/warren.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	config, err := Load(writeConfig(t, "version: \"1.0\"\nviewport:\n  - this is invalid\n    yaml syntax\n"))
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unsupported version", `version: "2.0"`, "unsupported version: 2.0"},
		{"viewport wider than archive", "version: \"1.0\"\nviewport: {width: 4}\narchive: {typologies: [a, b, c]}", "exceeds 3 archive typologies"},
		{"duplicate typology", "version: \"1.0\"\narchive: {typologies: [a, a, b, c, d, e]}", "duplicate typology 'a'"},
		{"negative batch", "version: \"1.0\"\nrun: {batch_size: -1}", "run.batch_size must be >= 1"},
		{"negative steps", "version: \"1.0\"\nrun: {init_steps: -1}", "must be >= 0"},
		{"bad backend", "version: \"1.0\"\ncheckpoint: {backend: s3}", "invalid checkpoint.backend"},
		{"file backend without dir", "version: \"1.0\"\ncheckpoint: {backend: file}", "checkpoint.dir is required"},
		{"bad provider", "version: \"1.0\"\nmodel: {provider: llama}", "invalid model.provider"},
		{"bad temperature", "version: \"1.0\"\nmodel: {temperature: 3}", "model.temperature"},
		{"negative y step", "version: \"1.0\"\nviewport: {y_step: -0.1}", "viewport.y_step"},
		{"bad axis", "version: \"1.0\"\narchive: {y_axis: {bin_width: -1}}", "archive.y_axis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvRedisURL, "redis://cache:6380/2")
	t.Setenv(EnvNamespace, "ci")
	t.Setenv(EnvAddr, ":9999")

	config := Default()
	config.ApplyEnv()

	assert.Equal(t, "redis://cache:6380/2", config.Redis.URL)
	assert.Equal(t, "ci", config.Redis.Namespace)
	assert.Equal(t, ":9999", config.Server.Addr)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	config, err := LoadOrDefault(filepath.Join(t.TempDir(), "warren.yml"))
	require.NoError(t, err)
	assert.Equal(t, Version, config.Version)
	assert.Equal(t, "default", config.Redis.Namespace)
}
