package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/resolver"
	"github.com/dyluth/warren/internal/session"
	"github.com/dyluth/warren/pkg/store"
)

// env bundles what most commands need.
type env struct {
	cfg    *config.Config
	client *store.Client
	svc    *session.Service
	logger *zap.Logger
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			fmt.Sprintf("Could not load %s: %v", configPath, err),
			[]string{"Regenerate it with:\n  warren init --force"},
		)
	}
	if redisURLFlag != "" {
		cfg.Redis.URL = redisURLFlag
	}
	if namespaceFlag != "" {
		cfg.Redis.Namespace = namespaceFlag
	}
	return cfg, nil
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// connect loads the configuration and opens a verified store connection.
func connect(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	client, err := store.NewClientFromURL(cfg.Redis.URL, cfg.Redis.Namespace)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis: %v", err),
			map[string]string{"URL": cfg.Redis.URL, "Namespace": cfg.Redis.Namespace},
			[]string{
				"Start a local store:\n  warren up",
				"Or point at an existing one:\n  warren --redis-url redis://host:6379/0 ...",
			},
		)
	}

	logger := newLogger()
	return &env{
		cfg:    cfg,
		client: client,
		svc:    session.NewService(cfg, client, session.WithLogger(logger)),
		logger: logger,
	}, nil
}

func (e *env) Close() {
	e.logger.Sync()
	e.client.Close()
}

// resolveSession expands a short session id. With allowNew an unknown id is
// returned unchanged so the session is created on first use.
func (e *env) resolveSession(ctx context.Context, id string, allowNew bool) (string, error) {
	full, err := resolver.ResolveSessionID(ctx, e.client, id)
	if err == nil {
		return full, nil
	}

	if resolver.IsNotFoundError(err) {
		if allowNew {
			return id, nil
		}
		return "", printer.Error(
			fmt.Sprintf("session '%s' not found", id),
			fmt.Sprintf("No session in namespace '%s' matches '%s'.", e.cfg.Redis.Namespace, id),
			[]string{"List sessions:\n  warren session list"},
		)
	}
	var ambiguous *resolver.AmbiguousError
	if errors.As(err, &ambiguous) {
		return "", printer.Error("ambiguous session id", resolver.FormatAmbiguousError(ambiguous), nil)
	}
	return "", err
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
