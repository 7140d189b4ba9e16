package commands

import (
	"context"
	"fmt"

	dockerpkg "github.com/dyluth/warren/internal/docker"
	"github.com/dyluth/warren/internal/printer"
	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start a local Redis session store",
	Long: `Start a Redis container for the configured namespace, published on the
first free localhost port from 6379.

The image comes from redis.image in warren.yml (default redis:7-alpine).`,
	RunE: runUp,
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the local Redis session store",
	Long: `Stop and remove the Redis container started by 'warren up' for the
configured namespace. Sessions and checkpoints stored in it are lost.`,
	RunE: runDown,
}

func init() {
	rootCmd.AddCommand(upCmd, downCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	printer.Step("Starting %s from %s...\n", dockerpkg.RedisContainerName(cfg.Redis.Namespace), cfg.Redis.Image)
	inst, err := dockerpkg.StartRedis(ctx, cli, cfg.Redis.Namespace, cfg.Redis.Image)
	if err != nil {
		return printer.Error(
			"failed to start Redis",
			err.Error(),
			[]string{fmt.Sprintf("If a previous store is still around:\n  warren down --namespace %s", cfg.Redis.Namespace)},
		)
	}

	printer.Success("Started %s on port %d\n", inst.Name, inst.Port)
	if inst.URL() != cfg.Redis.URL {
		printer.Info("\nPoint warren at it with:\n  export WARREN_REDIS_URL=%s\n", inst.URL())
	}
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	removed, err := dockerpkg.StopRedis(ctx, cli, cfg.Redis.Namespace)
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		return printer.Error(
			fmt.Sprintf("no Redis store for namespace '%s'", cfg.Redis.Namespace),
			"No container started by 'warren up' was found.",
			[]string{"Start one with:\n  warren up"},
		)
	}
	for _, name := range removed {
		printer.Success("Removed %s\n", name)
	}
	return nil
}
