// Package llm provides language-model decoders for the mutation operator.
package llm

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/dyluth/warren/pkg/qd"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultCredentialEnv is the environment variable read when no explicit
// API key is supplied.
const DefaultCredentialEnv = "OPENAI_API_KEY"

// Options configures an OpenAIDecoder.
type Options struct {
	Model         string
	MaxTokens     int
	Temperature   float32 // 0 requests greedy decoding
	BaseURL       string  // empty uses the public API
	CredentialEnv string  // empty uses DefaultCredentialEnv
}

// OpenAIDecoder decodes continuations through the OpenAI completions API.
// Each returned string is the prompt followed by the model's continuation.
type OpenAIDecoder struct {
	client *openai.Client
	opts   Options
	logger *zap.Logger
}

// ResolveCredential returns apiKey when set, otherwise the value of envName.
// A missing credential is a configuration error.
func ResolveCredential(apiKey, envName string) (string, error) {
	if strings.TrimSpace(apiKey) != "" {
		return strings.TrimSpace(apiKey), nil
	}
	if envName == "" {
		envName = DefaultCredentialEnv
	}
	if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s not set and no API key supplied: %w", envName, qd.ErrConfiguration)
}

// NewOpenAIDecoder creates a decoder. apiKey may be empty, in which case the
// credential is read from the configured environment variable.
func NewOpenAIDecoder(apiKey string, opts Options, logger *zap.Logger) (*OpenAIDecoder, error) {
	key, err := ResolveCredential(apiKey, opts.CredentialEnv)
	if err != nil {
		return nil, err
	}
	if opts.Model == "" {
		opts.Model = openai.GPT3Dot5TurboInstruct
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(key)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	logger.Info("initializing OpenAI decoder", zap.String("model", opts.Model))
	return &OpenAIDecoder{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
		logger: logger,
	}, nil
}

// BatchDecode requests n continuations of prompt in a single call.
func (d *OpenAIDecoder) BatchDecode(ctx context.Context, prompt string, n int) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d: %w", n, qd.ErrConfiguration)
	}

	temperature := d.opts.Temperature
	if temperature == 0 {
		// the request field is omitempty; a literal zero would fall back
		// to the API default of 1
		temperature = math.SmallestNonzeroFloat32
	}
	req := openai.CompletionRequest{
		Model:       d.opts.Model,
		Prompt:      prompt,
		N:           n,
		MaxTokens:   d.opts.MaxTokens,
		Temperature: temperature,
	}

	resp, err := d.client.CreateCompletion(ctx, req)
	if err != nil {
		d.logger.Warn("OpenAI completion failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI completion failed: %w", err)
	}

	out := make([]string, len(resp.Choices))
	for _, choice := range resp.Choices {
		if choice.Index < 0 || choice.Index >= len(out) {
			continue
		}
		out[choice.Index] = prompt + choice.Text
	}
	d.logger.Debug("decoded batch", zap.Int("requested", n), zap.Int("received", len(resp.Choices)))
	return out, nil
}
