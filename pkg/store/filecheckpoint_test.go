package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/pkg/qd"
)

func TestFileCheckpointStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "checkpoint")
	s := NewFileCheckpointStore(dir)

	_, err := s.LoadCheckpoint(ctx)
	assert.True(t, qd.IsPersistence(err), "empty dir has no checkpoint")

	cp := CheckpointFromPopulation(testPopulation())
	require.NoError(t, s.SaveCheckpoint(ctx, cp))

	for _, slot := range CheckpointSlots {
		assert.FileExists(t, filepath.Join(dir, slot+".json"))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temp files left behind")

	loaded, err := s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, cp, loaded)

	t.Run("missing slot", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "history.json")))
		_, err := s.LoadCheckpoint(ctx)
		require.Error(t, err)
		assert.True(t, qd.IsPersistence(err))
		assert.Contains(t, err.Error(), "history")
	})

	t.Run("corrupt slot", func(t *testing.T) {
		require.NoError(t, s.SaveCheckpoint(ctx, cp))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "recycled.json"), []byte("garbage"), 0o644))
		_, err := s.LoadCheckpoint(ctx)
		assert.True(t, qd.IsPersistence(err))
	})
}
