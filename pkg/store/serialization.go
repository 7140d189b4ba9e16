package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dyluth/warren/pkg/qd"
)

// EnvelopeVersion is the newest envelope version this build can read.
const EnvelopeVersion = 1

// Envelope kinds.
const (
	KindPopulation = "population"
	KindSnapshot   = "snapshot"
	KindViewport   = "viewport"
	KindRecycled   = "recycled"
	KindMap        = "map"
	KindHistory    = "history"
)

// Envelope is the tagged, versioned wrapper around every persisted blob.
type Envelope struct {
	Kind    string          `json:"kind"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// EncodeEnvelope marshals v and wraps it in an envelope of the given kind.
func EncodeEnvelope(kind string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	blob, err := json.Marshal(Envelope{Kind: kind, Version: EnvelopeVersion, Data: data})
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s envelope: %w", kind, err)
	}
	return string(blob), nil
}

// DecodeEnvelope unwraps blob into v. Malformed JSON, a kind mismatch or a
// version newer than EnvelopeVersion yield qd.ErrPersistence.
func DecodeEnvelope(blob, kind string, v any) error {
	var env Envelope
	if err := json.Unmarshal([]byte(blob), &env); err != nil {
		return fmt.Errorf("failed to unmarshal %s envelope: %v: %w", kind, err, qd.ErrPersistence)
	}
	if env.Kind != kind {
		return fmt.Errorf("expected %s envelope, got %q: %w", kind, env.Kind, qd.ErrPersistence)
	}
	if env.Version < 1 || env.Version > EnvelopeVersion {
		return fmt.Errorf("unsupported %s envelope version %d (max %d): %w", kind, env.Version, EnvelopeVersion, qd.ErrPersistence)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %v: %w", kind, err, qd.ErrPersistence)
	}
	return nil
}

// SessionToHash converts a SessionRecord to Redis hash fields.
// Nullable fields are stored as empty strings. Steps are stored separately.
func SessionToHash(r *SessionRecord) (map[string]interface{}, error) {
	population := ""
	if r.Population != nil {
		var err error
		population, err = EncodeEnvelope(KindPopulation, r.Population)
		if err != nil {
			return nil, err
		}
	}

	view, err := EncodeEnvelope(KindViewport, r.Viewport)
	if err != nil {
		return nil, err
	}

	selected := ""
	if r.SelectedStep != nil {
		selected = strconv.Itoa(*r.SelectedStep)
	}

	return map[string]interface{}{
		"session_id":     r.SessionID,
		"schema_version": SchemaVersion,
		"population":     population,
		"batch_size":     r.BatchSize,
		"viewport":       view,
		"selected_step":  selected,
		"created_at_ms":  r.CreatedAtMs,
		"updated_at_ms":  r.UpdatedAtMs,
	}, nil
}

// StepsToList encodes every snapshot as one list element.
func StepsToList(steps []qd.Snapshot) ([]interface{}, error) {
	out := make([]interface{}, 0, len(steps))
	for i, s := range steps {
		blob, err := EncodeEnvelope(KindSnapshot, s)
		if err != nil {
			return nil, fmt.Errorf("failed to encode step %d: %w", i, err)
		}
		out = append(out, blob)
	}
	return out, nil
}

// Merge decodes hash and steps over a copy of r. Fields absent from the hash
// keep r's value. r itself is never modified, so a decode failure leaves the
// caller's record intact.
func (r SessionRecord) Merge(hash map[string]string, steps []string) (*SessionRecord, error) {
	out := r.Clone()

	if v, ok := hash["schema_version"]; ok {
		version, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid schema_version field: %v: %w", err, qd.ErrPersistence)
		}
		if version > SchemaVersion {
			return nil, fmt.Errorf("session schema version %d is newer than supported %d: %w", version, SchemaVersion, qd.ErrPersistence)
		}
	}

	if v, ok := hash["session_id"]; ok && v != "" {
		out.SessionID = v
	}

	if v, ok := hash["population"]; ok {
		if v == "" {
			out.Population = nil
		} else {
			var pop qd.Population
			if err := DecodeEnvelope(v, KindPopulation, &pop); err != nil {
				return nil, err
			}
			if err := pop.Validate(); err != nil {
				return nil, fmt.Errorf("invalid population: %v: %w", err, qd.ErrPersistence)
			}
			out.Population = &pop
		}
	}

	if v, ok := hash["batch_size"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid batch_size field %q: %w", v, qd.ErrPersistence)
		}
		out.BatchSize = n
	}

	if v, ok := hash["viewport"]; ok {
		var state qd.ViewportState
		if err := DecodeEnvelope(v, KindViewport, &state); err != nil {
			return nil, err
		}
		out.Viewport = state
	}

	if v, ok := hash["selected_step"]; ok {
		if v == "" {
			out.SelectedStep = nil
		} else {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid selected_step field %q: %w", v, qd.ErrPersistence)
			}
			out.SelectedStep = &n
		}
	}

	if v, ok := hash["created_at_ms"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at_ms field %q: %w", v, qd.ErrPersistence)
		}
		out.CreatedAtMs = n
	}
	if v, ok := hash["updated_at_ms"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid updated_at_ms field %q: %w", v, qd.ErrPersistence)
		}
		out.UpdatedAtMs = n
	}

	if steps != nil {
		decoded := make([]qd.Snapshot, 0, len(steps))
		for i, blob := range steps {
			var s qd.Snapshot
			if err := DecodeEnvelope(blob, KindSnapshot, &s); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			decoded = append(decoded, s)
		}
		out.Steps = decoded
	}

	return out, nil
}
