// Package history keeps the ordered, append-only list of archive snapshots
// recorded once per completed search run.
package history

import (
	"fmt"

	"github.com/dyluth/warren/pkg/qd"
)

// IndexError is returned when a step index falls outside [0, Len()).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("step index %d out of range [0, %d)", e.Index, e.Len)
}

// Store is an append-only sequence of snapshots. Not safe for concurrent use;
// each request owns its session's store for the request's duration.
type Store struct {
	snapshots []qd.Snapshot
}

// New returns a store seeded with the given snapshots, oldest first.
func New(snapshots ...qd.Snapshot) *Store {
	return &Store{snapshots: append([]qd.Snapshot{}, snapshots...)}
}

// Append adds a snapshot and returns the new length.
func (s *Store) Append(snap qd.Snapshot) int {
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots)
}

// Get returns the snapshot at index.
func (s *Store) Get(index int) (qd.Snapshot, error) {
	if index < 0 || index >= len(s.snapshots) {
		return qd.Snapshot{}, &IndexError{Index: index, Len: len(s.snapshots)}
	}
	return s.snapshots[index], nil
}

// Len returns the number of recorded snapshots.
func (s *Store) Len() int {
	return len(s.snapshots)
}

// Latest returns the index of the most recent snapshot, or -1 when empty.
func (s *Store) Latest() int {
	return len(s.snapshots) - 1
}

// Resolve picks the snapshot index to display: the override when given,
// otherwise the latest snapshot.
func (s *Store) Resolve(selected *int) (int, error) {
	if len(s.snapshots) == 0 {
		return -1, &IndexError{Index: 0, Len: 0}
	}
	if selected == nil {
		return s.Latest(), nil
	}
	if *selected < 0 || *selected >= len(s.snapshots) {
		return -1, &IndexError{Index: *selected, Len: len(s.snapshots)}
	}
	return *selected, nil
}

// Snapshots returns a copy of the recorded snapshots, oldest first.
func (s *Store) Snapshots() []qd.Snapshot {
	return append([]qd.Snapshot{}, s.snapshots...)
}

// Reset replaces the whole history with a single snapshot. Used after a
// checkpoint load, where step history is not restored.
func (s *Store) Reset(snap qd.Snapshot) {
	s.snapshots = []qd.Snapshot{snap}
}
