package store

import (
	"errors"
	"time"

	"github.com/dyluth/warren/pkg/qd"
)

// SchemaVersion is written into every session hash.
const SchemaVersion = 1

// ErrSessionLocked is returned when another request holds the session lock.
var ErrSessionLocked = errors.New("session is locked by another request")

// SessionRecord is everything persisted for one explorer session.
type SessionRecord struct {
	SessionID    string           `json:"session_id"`
	Population   *qd.Population   `json:"population,omitempty"` // nil until the first run or checkpoint load
	BatchSize    int              `json:"batch_size"`
	Viewport     qd.ViewportState `json:"viewport"`
	SelectedStep *int             `json:"selected_step,omitempty"` // nil follows the latest step
	Steps        []qd.Snapshot    `json:"steps"`
	CreatedAtMs  int64            `json:"created_at_ms"`
	UpdatedAtMs  int64            `json:"updated_at_ms"`
}

// NewSessionRecord returns a fresh record with the given defaults.
func NewSessionRecord(sessionID string, batchSize int, view qd.ViewportState) *SessionRecord {
	now := time.Now().UnixMilli()
	return &SessionRecord{
		SessionID:   sessionID,
		BatchSize:   batchSize,
		Viewport:    view,
		Steps:       []qd.Snapshot{},
		CreatedAtMs: now,
		UpdatedAtMs: now,
	}
}

// Clone returns a deep copy. Snapshots are immutable and shared.
func (r SessionRecord) Clone() *SessionRecord {
	out := r
	out.Population = r.Population.Clone()
	if r.SelectedStep != nil {
		n := *r.SelectedStep
		out.SelectedStep = &n
	}
	out.Steps = append([]qd.Snapshot{}, r.Steps...)
	return &out
}

// CheckpointRecord is the global, session independent archive checkpoint.
type CheckpointRecord struct {
	Genomes  *qd.Grid          `json:"genomes"`
	Recycled []qd.Genome       `json:"recycled"`
	History  []qd.HistoryEntry `json:"history"`
}

// CheckpointFromPopulation copies a population into a checkpoint.
func CheckpointFromPopulation(p *qd.Population) *CheckpointRecord {
	cp := p.Clone()
	return &CheckpointRecord{Genomes: cp.Genomes, Recycled: cp.Recycled, History: cp.History}
}

// Population returns the checkpoint as a population.
func (c *CheckpointRecord) Population() *qd.Population {
	return (&qd.Population{Genomes: c.Genomes, Recycled: c.Recycled, History: c.History}).Clone()
}

// Event is a structured notification published on a session's channel.
type Event struct {
	Type        string                 `json:"type"`
	SessionID   string                 `json:"session_id"`
	TimestampMs int64                  `json:"timestamp_ms"`
	Data        map[string]interface{} `json:"data,omitempty"`
}
