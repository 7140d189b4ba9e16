package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dyluth/warren/pkg/qd"
)

// CheckpointStore saves and loads the global checkpoint.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp *CheckpointRecord) error
	LoadCheckpoint(ctx context.Context) (*CheckpointRecord, error)
}

var (
	_ CheckpointStore = (*Client)(nil)
	_ CheckpointStore = (*FileCheckpointStore)(nil)
)

// FileCheckpointStore keeps the checkpoint as three JSON files in Dir.
type FileCheckpointStore struct {
	Dir string
}

// NewFileCheckpointStore returns a store rooted at dir.
func NewFileCheckpointStore(dir string) *FileCheckpointStore {
	return &FileCheckpointStore{Dir: dir}
}

func (s *FileCheckpointStore) path(slot string) string {
	return filepath.Join(s.Dir, slot+".json")
}

// SaveCheckpoint writes each slot to a temp file and renames it into place.
// Slots are renamed in a fixed order; a crash between renames can leave a
// mix of old and new slots but never a truncated file.
func (s *FileCheckpointStore) SaveCheckpoint(ctx context.Context, cp *CheckpointRecord) error {
	blobs, err := encodeCheckpoint(cp)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}

	for _, slot := range CheckpointSlots {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFileAtomic(s.path(slot), []byte(blobs[slot])); err != nil {
			return fmt.Errorf("failed to write checkpoint slot %s: %w", slot, err)
		}
	}
	return nil
}

// LoadCheckpoint reads all three slot files. A missing file yields
// qd.ErrPersistence.
func (s *FileCheckpointStore) LoadCheckpoint(ctx context.Context) (*CheckpointRecord, error) {
	blobs := make(map[string]string, len(CheckpointSlots))
	for _, slot := range CheckpointSlots {
		data, err := os.ReadFile(s.path(slot))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("checkpoint slot %s is missing: %w", slot, qd.ErrPersistence)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint slot %s: %v: %w", slot, err, qd.ErrPersistence)
		}
		blobs[slot] = string(data)
	}
	return decodeCheckpoint(blobs)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
