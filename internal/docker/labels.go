package docker

import (
	"fmt"

	"github.com/google/uuid"
)

// Label keys used for Warren resources
const (
	LabelProject   = "warren.project"
	LabelNamespace = "warren.namespace"
	LabelRunID     = "warren.run_id"
	LabelComponent = "warren.component"
	LabelRedisPort = "warren.redis.port"
)

// ComponentRedis marks the session store container.
const ComponentRedis = "redis"

// BuildLabels creates the standard label set for Warren resources.
// component may be empty.
func BuildLabels(namespace, runID, component string) map[string]string {
	labels := map[string]string{
		LabelProject:   "true",
		LabelNamespace: namespace,
		LabelRunID:     runID,
	}

	if component != "" {
		labels[LabelComponent] = component
	}

	return labels
}

// GenerateRunID creates a new UUID for a `warren up` invocation.
func GenerateRunID() string {
	return uuid.New().String()
}

// RedisContainerName returns the Redis container name for a namespace
func RedisContainerName(namespace string) string {
	return fmt.Sprintf("warren-redis-%s", namespace)
}
