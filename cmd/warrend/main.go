// Command warrend serves the warren session API.
//
// It is configured through the environment so it can run as a container
// next to Redis:
//
//	WARREN_CONFIG     path to warren.yml (default /etc/warren/warren.yml; optional)
//	WARREN_REDIS_URL  overrides redis.url
//	WARREN_NAMESPACE  overrides redis.namespace
//	WARREN_ADDR       overrides server.addr
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/server"
	"github.com/dyluth/warren/internal/session"
	"github.com/dyluth/warren/pkg/store"
)

const defaultConfigPath = "/etc/warren/warren.yml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("WARREN_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", configPath, err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	client, err := store.NewClientFromURL(cfg.Redis.URL, cfg.Redis.Namespace)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx); err != nil {
		return fmt.Errorf("redis not accessible at %s: %w", cfg.Redis.URL, err)
	}

	logger.Info("warrend starting",
		zap.String("namespace", cfg.Redis.Namespace),
		zap.String("provider", cfg.Model.Provider),
		zap.String("checkpoint_backend", cfg.Checkpoint.Backend),
	)

	svc := session.NewService(cfg, client, session.WithLogger(logger))
	return server.New(svc, client, logger).ListenAndServe(ctx, cfg.Server.Addr)
}
