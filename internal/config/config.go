package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/warren/pkg/qd"
)

// Version is the only supported warren.yml schema version.
const Version = "1.0"

// Environment overrides applied by ApplyEnv.
const (
	EnvRedisURL  = "WARREN_REDIS_URL"
	EnvNamespace = "WARREN_NAMESPACE"
	EnvAddr      = "WARREN_ADDR"
)

// Checkpoint backends.
const (
	CheckpointRedis = "redis"
	CheckpointFile  = "file"
)

// Model providers.
const (
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// DefaultTypologies is the discrete archive axis, in column order.
var DefaultTypologies = []string{"1b1b", "2b1b", "2b2b", "3b1b", "3b2b", "3b3b", "4b1b", "4b2b", "4b3b", "4b4b"}

// DefaultPrompts seed unconditioned generations.
var DefaultPrompts = []string{
	"[prompt] a house with one bedroom and one bathroom [layout]",
	"[prompt] a house with two bedrooms and one bathroom [layout]",
	"[prompt] a house with three bedrooms and two bathrooms [layout]",
	"[prompt] a bedroom is adjacent to the kitchen [layout]",
	"[prompt] the bathroom is next to the corridor [layout]",
}

// Config represents the top-level warren.yml configuration
type Config struct {
	Version    string            `yaml:"version"`
	Redis      *RedisConfig      `yaml:"redis,omitempty"`
	Server     *ServerConfig     `yaml:"server,omitempty"`
	Viewport   *ViewportConfig   `yaml:"viewport,omitempty"`
	Archive    *ArchiveConfig    `yaml:"archive,omitempty"`
	Run        *RunConfig        `yaml:"run,omitempty"`
	Mutation   *MutationConfig   `yaml:"mutation,omitempty"`
	Model      *ModelConfig      `yaml:"model,omitempty"`
	Render     *RenderConfig     `yaml:"render,omitempty"`
	Checkpoint *CheckpointConfig `yaml:"checkpoint,omitempty"`
}

// RedisConfig locates the session store.
type RedisConfig struct {
	URL       string        `yaml:"url,omitempty"`
	Namespace string        `yaml:"namespace,omitempty"`
	LockTTL   time.Duration `yaml:"lock_ttl,omitempty"`
	Image     string        `yaml:"image,omitempty"` // used by `warren up`
}

// ServerConfig configures warrend.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// ViewportConfig sizes the explorer window.
type ViewportConfig struct {
	Width  int      `yaml:"width,omitempty"`
	Height int      `yaml:"height,omitempty"`
	YStep  float64  `yaml:"y_step,omitempty"`
	YStart *float64 `yaml:"y_start,omitempty"`
	ClampY bool     `yaml:"clamp_y,omitempty"` // keep the window inside the y axis on recenter
}

// AxisConfig is the continuous behaviour axis.
type AxisConfig struct {
	Min      *float64 `yaml:"min,omitempty"`
	BinWidth float64  `yaml:"bin_width,omitempty"`
	Bins     int      `yaml:"bins,omitempty"`
}

// ArchiveConfig describes the archive grid.
type ArchiveConfig struct {
	Typologies  []string    `yaml:"typologies,omitempty"`
	YAxis       *AxisConfig `yaml:"y_axis,omitempty"`
	RecycledMax int         `yaml:"recycled_max,omitempty"`
}

// RunConfig holds default run parameters.
type RunConfig struct {
	InitSteps     *int `yaml:"init_steps,omitempty"`
	MutationSteps *int `yaml:"mutation_steps,omitempty"`
	BatchSize     int  `yaml:"batch_size,omitempty"`
}

// MutationConfig configures prompt synthesis.
type MutationConfig struct {
	Prompts []string `yaml:"prompts,omitempty"`
	Seed    *uint64  `yaml:"seed,omitempty"` // nil = random
}

// ModelConfig configures the language model.
type ModelConfig struct {
	Provider      string   `yaml:"provider,omitempty"`
	Name          string   `yaml:"name,omitempty"`
	MaxTokens     int      `yaml:"max_tokens,omitempty"`
	Temperature   *float32 `yaml:"temperature,omitempty"` // nil = 0.9; 0 is greedy
	BaseURL       string   `yaml:"base_url,omitempty"`
	CredentialEnv string   `yaml:"credential_env,omitempty"`
}

// RenderConfig configures tile rendering.
type RenderConfig struct {
	TileSize int `yaml:"tile_size,omitempty"`
}

// CheckpointConfig selects where the global checkpoint lives.
type CheckpointConfig struct {
	Backend string `yaml:"backend,omitempty"`
	Dir     string `yaml:"dir,omitempty"` // required for the file backend
}

// Default returns a fully-defaulted configuration.
func Default() *Config {
	c := &Config{Version: Version}
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return c
}

// Validate applies defaults to missing sections and rejects bad values.
func (c *Config) Validate() error {
	if c.Version != Version {
		return fmt.Errorf("unsupported version: %s (expected: %s)", c.Version, Version)
	}

	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Redis.URL == "" {
		c.Redis.URL = "redis://localhost:6379/0"
	}
	if c.Redis.Namespace == "" {
		c.Redis.Namespace = "default"
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 10 * time.Minute
	}
	if c.Redis.LockTTL < 0 {
		return fmt.Errorf("redis.lock_ttl must be > 0, got %s", c.Redis.LockTTL)
	}
	if c.Redis.Image == "" {
		c.Redis.Image = "redis:7-alpine"
	}

	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}

	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateViewport(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}

	if c.Mutation == nil {
		c.Mutation = &MutationConfig{}
	}
	if len(c.Mutation.Prompts) == 0 {
		c.Mutation.Prompts = append([]string{}, DefaultPrompts...)
	}

	if err := c.validateModel(); err != nil {
		return err
	}

	if c.Render == nil {
		c.Render = &RenderConfig{}
	}
	if c.Render.TileSize == 0 {
		c.Render.TileSize = 256
	}
	if c.Render.TileSize < 1 {
		return fmt.Errorf("render.tile_size must be >= 1, got %d", c.Render.TileSize)
	}

	if c.Checkpoint == nil {
		c.Checkpoint = &CheckpointConfig{}
	}
	switch c.Checkpoint.Backend {
	case "":
		c.Checkpoint.Backend = CheckpointRedis
	case CheckpointRedis:
	case CheckpointFile:
		if c.Checkpoint.Dir == "" {
			return fmt.Errorf("checkpoint.dir is required for the file backend")
		}
	default:
		return fmt.Errorf("invalid checkpoint.backend: %s (must be '%s' or '%s')", c.Checkpoint.Backend, CheckpointRedis, CheckpointFile)
	}

	return nil
}

func (c *Config) validateArchive() error {
	if c.Archive == nil {
		c.Archive = &ArchiveConfig{}
	}
	if len(c.Archive.Typologies) == 0 {
		c.Archive.Typologies = append([]string{}, DefaultTypologies...)
	}
	seen := make(map[string]bool, len(c.Archive.Typologies))
	for _, t := range c.Archive.Typologies {
		if seen[t] {
			return fmt.Errorf("duplicate typology '%s' in archive.typologies", t)
		}
		seen[t] = true
	}

	if c.Archive.YAxis == nil {
		c.Archive.YAxis = &AxisConfig{}
	}
	if c.Archive.YAxis.Min == nil {
		lo := 0.5
		c.Archive.YAxis.Min = &lo
	}
	if c.Archive.YAxis.BinWidth == 0 {
		c.Archive.YAxis.BinWidth = 0.1
	}
	if c.Archive.YAxis.Bins == 0 {
		c.Archive.YAxis.Bins = 20
	}
	if err := c.YAxis().Validate(); err != nil {
		return fmt.Errorf("archive.y_axis: %w", err)
	}

	if c.Archive.RecycledMax == 0 {
		c.Archive.RecycledMax = 1000
	}
	if c.Archive.RecycledMax < 0 {
		return fmt.Errorf("archive.recycled_max must be >= 1, got %d", c.Archive.RecycledMax)
	}
	return nil
}

func (c *Config) validateViewport() error {
	if c.Viewport == nil {
		c.Viewport = &ViewportConfig{}
	}
	v := c.Viewport
	if v.Width == 0 {
		v.Width = 5
	}
	if v.Height == 0 {
		v.Height = 5
	}
	if v.YStep == 0 {
		v.YStep = 0.1
	}
	if v.YStart == nil {
		start := 1.0
		v.YStart = &start
	}
	if v.Width < 1 || v.Height < 1 {
		return fmt.Errorf("viewport.width and viewport.height must be >= 1, got %dx%d", v.Width, v.Height)
	}
	if v.YStep < 0 {
		return fmt.Errorf("viewport.y_step must be > 0, got %v", v.YStep)
	}
	// The explorer enforces width <= typologies at request time; a config that
	// can never satisfy it is rejected here.
	if v.Width > len(c.Archive.Typologies) {
		return fmt.Errorf("viewport.width %d exceeds %d archive typologies", v.Width, len(c.Archive.Typologies))
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run == nil {
		c.Run = &RunConfig{}
	}
	if c.Run.InitSteps == nil {
		n := 1
		c.Run.InitSteps = &n
	}
	if c.Run.MutationSteps == nil {
		n := 1
		c.Run.MutationSteps = &n
	}
	if c.Run.BatchSize == 0 {
		c.Run.BatchSize = 2
	}
	if *c.Run.InitSteps < 0 || *c.Run.MutationSteps < 0 {
		return fmt.Errorf("run.init_steps and run.mutation_steps must be >= 0")
	}
	if c.Run.BatchSize < 1 {
		return fmt.Errorf("run.batch_size must be >= 1, got %d", c.Run.BatchSize)
	}
	return nil
}

func (c *Config) validateModel() error {
	if c.Model == nil {
		c.Model = &ModelConfig{}
	}
	m := c.Model
	switch m.Provider {
	case "":
		m.Provider = ProviderOpenAI
	case ProviderOpenAI, ProviderStatic:
	default:
		return fmt.Errorf("invalid model.provider: %s (must be '%s' or '%s')", m.Provider, ProviderOpenAI, ProviderStatic)
	}
	if m.Name == "" {
		m.Name = "gpt-3.5-turbo-instruct"
	}
	if m.MaxTokens == 0 {
		m.MaxTokens = 256
	}
	if m.MaxTokens < 1 {
		return fmt.Errorf("model.max_tokens must be >= 1, got %d", m.MaxTokens)
	}
	if m.Temperature == nil {
		t := float32(0.9)
		m.Temperature = &t
	}
	if *m.Temperature < 0 || *m.Temperature > 2 {
		return fmt.Errorf("model.temperature must be within [0, 2], got %v", *m.Temperature)
	}
	if m.CredentialEnv == "" {
		m.CredentialEnv = "OPENAI_API_KEY"
	}
	return nil
}

// YAxis returns the configured continuous axis.
func (c *Config) YAxis() qd.Axis {
	a := qd.Axis{BinWidth: c.Archive.YAxis.BinWidth, Bins: c.Archive.YAxis.Bins}
	if c.Archive.YAxis.Min != nil {
		a.Min = *c.Archive.YAxis.Min
	}
	return a
}

// ApplyEnv overrides connection settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv(EnvNamespace); v != "" {
		c.Redis.Namespace = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
}

// Load reads and validates warren.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
// Environment overrides are applied in both cases.
func LoadOrDefault(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = Default()
	}
	cfg.ApplyEnv()
	return cfg, nil
}
