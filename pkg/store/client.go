package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dyluth/warren/pkg/qd"
)

// releaseLockScript deletes the lock only if it still holds our token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client provides namespace-scoped Redis operations for sessions and the
// checkpoint. It is safe for concurrent use.
type Client struct {
	rdb       *redis.Client
	namespace string
}

// NewClient creates a store client for the given namespace.
// Returns an error if namespace is empty.
func NewClient(redisOpts *redis.Options, namespace string) (*Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a client.
func NewClientFromURL(url, namespace string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url %q: %v: %w", url, err, qd.ErrConfiguration)
	}
	return NewClient(opts, namespace)
}

// Namespace returns the client's key namespace.
func (c *Client) Namespace() string {
	return c.namespace
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SaveSession atomically replaces the session hash and its step list.
func (c *Client) SaveSession(ctx context.Context, r *SessionRecord) error {
	if r.SessionID == "" {
		return fmt.Errorf("session record has no id")
	}

	hash, err := SessionToHash(r)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	steps, err := StepsToList(r.Steps)
	if err != nil {
		return fmt.Errorf("failed to serialize session steps: %w", err)
	}

	key := SessionKey(c.namespace, r.SessionID)
	stepsKey := SessionStepsKey(c.namespace, r.SessionID)

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key, stepsKey)
		pipe.HSet(ctx, key, hash)
		if len(steps) > 0 {
			pipe.RPush(ctx, stepsKey, steps...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write session to Redis: %w", err)
	}
	return nil
}

// LoadSession reads a session and merges it over defaults.
// Returns (nil, redis.Nil) if the session doesn't exist; use IsNotFound.
// Decode failures wrap qd.ErrPersistence and leave defaults untouched.
func (c *Client) LoadSession(ctx context.Context, sessionID string, defaults SessionRecord) (*SessionRecord, error) {
	key := SessionKey(c.namespace, sessionID)

	hash, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session from Redis: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	steps, err := c.rdb.LRange(ctx, SessionStepsKey(c.namespace, sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session steps from Redis: %w", err)
	}
	if steps == nil {
		steps = []string{}
	}

	defaults.SessionID = sessionID
	record, err := defaults.Merge(hash, steps)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize session %s: %w", sessionID, err)
	}
	return record, nil
}

// SessionExists checks whether a session record is stored.
func (c *Client) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	exists, err := c.rdb.Exists(ctx, SessionKey(c.namespace, sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return exists > 0, nil
}

// ScanSessions returns the ids of stored sessions starting with prefix.
// An empty prefix lists every session.
func (c *Client) ScanSessions(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	iter := c.rdb.Scan(ctx, 0, sessionScanPattern(c.namespace, prefix), 100).Iterator()
	for iter.Next(ctx) {
		if id, ok := sessionIDFromKey(c.namespace, iter.Val()); ok {
			ids = append(ids, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return ids, nil
}

// SessionLock is a held per-session lock.
type SessionLock struct {
	SessionID string
	key       string
	token     string
}

// AcquireSessionLock takes the session's exclusive lock for ttl.
// Returns ErrSessionLocked if another holder has it.
func (c *Client) AcquireSessionLock(ctx context.Context, sessionID string, ttl time.Duration) (*SessionLock, error) {
	lock := &SessionLock{
		SessionID: sessionID,
		key:       SessionLockKey(c.namespace, sessionID),
		token:     uuid.New().String(),
	}

	ok, err := c.rdb.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionLocked)
	}
	return lock, nil
}

// ReleaseSessionLock releases lock if it is still ours. Releasing an
// expired or stolen lock is a no-op.
func (c *Client) ReleaseSessionLock(ctx context.Context, lock *SessionLock) error {
	if lock == nil {
		return nil
	}
	if err := releaseLockScript.Run(ctx, c.rdb, []string{lock.key}, lock.token).Err(); err != nil {
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return nil
}

// SaveCheckpoint writes all three checkpoint slots in one transaction.
func (c *Client) SaveCheckpoint(ctx context.Context, cp *CheckpointRecord) error {
	blobs, err := encodeCheckpoint(cp)
	if err != nil {
		return err
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, slot := range CheckpointSlots {
			pipe.Set(ctx, CheckpointKey(c.namespace, slot), blobs[slot], 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write checkpoint to Redis: %w", err)
	}
	return nil
}

// LoadCheckpoint reads all three slots. A missing slot or an undecodable
// blob yields qd.ErrPersistence.
func (c *Client) LoadCheckpoint(ctx context.Context) (*CheckpointRecord, error) {
	keys := make([]string, len(CheckpointSlots))
	for i, slot := range CheckpointSlots {
		keys[i] = CheckpointKey(c.namespace, slot)
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint from Redis: %w", err)
	}

	blobs := make(map[string]string, len(CheckpointSlots))
	for i, slot := range CheckpointSlots {
		s, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("checkpoint slot %s is missing: %w", slot, qd.ErrPersistence)
		}
		blobs[slot] = s
	}
	return decodeCheckpoint(blobs)
}

func encodeCheckpoint(cp *CheckpointRecord) (map[string]string, error) {
	if cp == nil || cp.Genomes == nil {
		return nil, fmt.Errorf("checkpoint has no genome map")
	}
	recycled, err := EncodeEnvelope(KindRecycled, cp.Recycled)
	if err != nil {
		return nil, err
	}
	grid, err := EncodeEnvelope(KindMap, cp.Genomes)
	if err != nil {
		return nil, err
	}
	history, err := EncodeEnvelope(KindHistory, cp.History)
	if err != nil {
		return nil, err
	}
	return map[string]string{SlotRecycled: recycled, SlotMap: grid, SlotHistory: history}, nil
}

func decodeCheckpoint(blobs map[string]string) (*CheckpointRecord, error) {
	cp := &CheckpointRecord{}
	if err := DecodeEnvelope(blobs[SlotRecycled], KindRecycled, &cp.Recycled); err != nil {
		return nil, err
	}
	if err := DecodeEnvelope(blobs[SlotMap], KindMap, &cp.Genomes); err != nil {
		return nil, err
	}
	if err := DecodeEnvelope(blobs[SlotHistory], KindHistory, &cp.History); err != nil {
		return nil, err
	}
	if cp.Genomes == nil {
		return nil, fmt.Errorf("checkpoint map is empty: %w", qd.ErrPersistence)
	}
	if err := cp.Genomes.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint map: %v: %w", err, qd.ErrPersistence)
	}
	return cp, nil
}

// PublishEvent publishes e on the session's event channel.
func (c *Client) PublishEvent(ctx context.Context, e *Event) error {
	if e.TimestampMs == 0 {
		e.TimestampMs = time.Now().UnixMilli()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := c.rdb.Publish(ctx, SessionEventsChannel(c.namespace, e.SessionID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// EventSubscription is an active Pub/Sub subscription to session events.
// Caller must call Close() when done.
type EventSubscription struct {
	events <-chan *Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of session events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *EventSubscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of non-fatal decode errors.
func (s *EventSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *EventSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to a session's events.
// Delivery is at-most-once: a slow subscriber may miss events.
func (c *Client) SubscribeEvents(ctx context.Context, sessionID string) (*EventSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, SessionEventsChannel(c.namespace, sessionID))

	// Wait for the subscription to be confirmed so no event published after
	// this call returns is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	eventsChan := make(chan *Event, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal session event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &EventSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
