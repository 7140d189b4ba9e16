// Package docker manages the local Redis container that backs Warren
// sessions when the operator does not bring their own.
package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/client"
)

const pingTimeout = 5 * time.Second

// NewClient connects to the daemon named by the DOCKER_* environment and
// checks it answers a ping.
func NewClient(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf(`Docker daemon not accessible: %w

warren up needs Docker. Either start it:
  • macOS: Docker Desktop
  • Linux: sudo systemctl start docker
or skip warren up and point at an existing Redis:
  warren --redis-url redis://host:6379/0 ...`, err)
	}

	return cli, nil
}
