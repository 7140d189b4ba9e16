package store

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxSessionIDLength bounds operator-chosen session ids.
const MaxSessionIDLength = 128

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateSessionID rejects ids that could not be listed or resolved later:
// anything outside letters, digits, '-' and '_' (':' would collide with the
// key schema, glob characters with SCAN patterns).
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("session id longer than %d characters", MaxSessionIDLength)
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("session id %q may only contain letters, digits, '-' and '_'", id)
	}
	return nil
}

// Checkpoint slot names.
const (
	SlotRecycled = "recycled"
	SlotMap      = "map"
	SlotHistory  = "history"
)

// CheckpointSlots lists every slot a loadable checkpoint must contain.
var CheckpointSlots = []string{SlotRecycled, SlotMap, SlotHistory}

// SessionKey returns the Redis key for a session record hash.
// Pattern: warren:{namespace}:session:{session_id}
func SessionKey(namespace, sessionID string) string {
	return fmt.Sprintf("warren:%s:session:%s", namespace, sessionID)
}

// SessionStepsKey returns the Redis key for a session's snapshot list.
// Pattern: warren:{namespace}:session:{session_id}:steps
func SessionStepsKey(namespace, sessionID string) string {
	return SessionKey(namespace, sessionID) + ":steps"
}

// SessionLockKey returns the Redis key guarding a session.
// Pattern: warren:{namespace}:session:{session_id}:lock
func SessionLockKey(namespace, sessionID string) string {
	return SessionKey(namespace, sessionID) + ":lock"
}

// SessionEventsChannel returns the Pub/Sub channel for a session's events.
// Pattern: warren:{namespace}:session:{session_id}:events
func SessionEventsChannel(namespace, sessionID string) string {
	return SessionKey(namespace, sessionID) + ":events"
}

// CheckpointKey returns the Redis key for one checkpoint slot.
// Pattern: warren:{namespace}:checkpoint:{slot}
func CheckpointKey(namespace, slot string) string {
	return fmt.Sprintf("warren:%s:checkpoint:%s", namespace, slot)
}

// sessionScanPattern matches session hashes whose id starts with prefix.
// It also matches the session's auxiliary keys; see sessionIDFromKey.
func sessionScanPattern(namespace, prefix string) string {
	return globEscape(SessionKey(namespace, prefix)) + "*"
}

// globEscape quotes the characters Redis treats specially in MATCH patterns.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sessionIDFromKey extracts the id from a session hash key, rejecting
// the :steps, :lock and :events companions.
func sessionIDFromKey(namespace, key string) (string, bool) {
	id, ok := strings.CutPrefix(key, SessionKey(namespace, ""))
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}
