package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	// Port range for Redis containers (allows 100 concurrent namespaces)
	startPort = 6379
	endPort   = 6478

	redisPort = "6379/tcp"
)

// RedisInstance is a running (or stopped) Warren Redis container.
type RedisInstance struct {
	ContainerID string
	Name        string
	Port        int
	State       string
}

// URL returns the redis:// URL reachable from this host.
func (r *RedisInstance) URL() string {
	return RedisURL(r.Port)
}

// RedisURL constructs the Redis URL for a published port. Inside a container
// the host's published ports are reached through host.docker.internal.
func RedisURL(port int) string {
	host := "localhost"
	if _, err := os.Stat("/.dockerenv"); err == nil {
		host = "host.docker.internal"
	}
	return fmt.Sprintf("redis://%s:%d/0", host, port)
}

func redisFilter(namespace string) filters.Args {
	f := filters.NewArgs()
	f.Add("label", fmt.Sprintf("%s=true", LabelProject))
	f.Add("label", fmt.Sprintf("%s=%s", LabelComponent, ComponentRedis))
	if namespace != "" {
		f.Add("label", fmt.Sprintf("%s=%s", LabelNamespace, namespace))
	}
	return f
}

// FindRedis returns the Redis container for namespace, or nil if none exists.
func FindRedis(ctx context.Context, cli client.APIClient, namespace string) (*RedisInstance, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: redisFilter(namespace),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return nil, nil
	}
	return toInstance(containers[0]), nil
}

func toInstance(c types.Container) *RedisInstance {
	inst := &RedisInstance{ContainerID: c.ID, State: c.State}
	if len(c.Names) > 0 {
		inst.Name = strings.TrimPrefix(c.Names[0], "/")
	}
	if port, err := strconv.Atoi(c.Labels[LabelRedisPort]); err == nil {
		inst.Port = port
	}
	return inst
}

// FindNextAvailablePort finds the next available port for Redis, starting from 6379.
// Checks both Docker container labels and actual port bindability on the host.
func FindNextAvailablePort(ctx context.Context, cli client.APIClient) (int, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: redisFilter(""),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query Docker containers: %w", err)
	}

	usedPorts := make(map[int]bool)
	for _, c := range containers {
		if port, err := strconv.Atoi(c.Labels[LabelRedisPort]); err == nil {
			usedPorts[port] = true
		}
	}

	for port := startPort; port <= endPort; port++ {
		if usedPorts[port] {
			continue
		}
		if isPortBindable(port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no available Redis ports (range %d-%d exhausted)", startPort, endPort)
}

func isPortBindable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// StartRedis creates and starts a Redis container for namespace, publishing
// it on the first free port. An existing container is an error.
func StartRedis(ctx context.Context, cli client.APIClient, namespace, image string) (*RedisInstance, error) {
	existing, err := FindRedis(ctx, cli, namespace)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("redis for namespace '%s' already exists: %s", namespace, existing.Name)
	}

	port, err := FindNextAvailablePort(ctx, cli)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate Redis port: %w", err)
	}

	name := RedisContainerName(namespace)
	labels := BuildLabels(namespace, GenerateRunID(), ComponentRedis)
	labels[LabelRedisPort] = strconv.Itoa(port)

	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:  image,
		Labels: labels,
		ExposedPorts: nat.PortSet{
			redisPort: struct{}{},
		},
	}, &container.HostConfig{
		PortBindings: nat.PortMap{
			redisPort: []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: strconv.Itoa(port),
				},
			},
		},
	}, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis container: %w", err)
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Cleanup on start failure
		cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	return &RedisInstance{ContainerID: resp.ID, Name: name, Port: port, State: "running"}, nil
}

// StopRedis stops and removes every Redis container for namespace and
// returns the names removed.
func StopRedis(ctx context.Context, cli client.APIClient, namespace string) ([]string, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: redisFilter(namespace),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	timeout := 10
	var removed []string
	for _, c := range containers {
		inst := toInstance(c)
		// Ignored: the container may already be stopped.
		_ = cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout})
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", inst.Name, err)
		}
		removed = append(removed, inst.Name)
	}
	return removed, nil
}
