package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livability-pipeline/models"
)

func TestCheckpointLoadMissingFile(t *testing.T) {
	s := NewJSONCheckpointStore(filepath.Join(t.TempDir(), "progress.json"))
	state, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Processed)
	assert.Empty(t, state.Failed)
	assert.True(t, state.LastUpdated.IsZero())
}

func TestCheckpointSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "progress.json")
	s := NewJSONCheckpointStore(path)
	fixed := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	state := models.NewCheckpointState()
	state.MarkProcessed("111")
	state.MarkFailed("222")
	require.NoError(t, s.Save(state))
	assert.Equal(t, fixed, state.LastUpdated)

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"111"}, loaded.ProcessedIDs())
	assert.Equal(t, []string{"222"}, loaded.FailedIDs())
	assert.True(t, fixed.Equal(loaded.LastUpdated))

	// no temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCheckpointCorruptFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"processed": [`), 0644))

	_, err := NewJSONCheckpointStore(path).Load()
	assert.Error(t, err)
}

func TestCheckpointSaveReplacesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	s := NewJSONCheckpointStore(path)

	big := models.NewCheckpointState()
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		big.MarkProcessed(id)
	}
	require.NoError(t, s.Save(big))

	small := models.NewCheckpointState()
	small.MarkProcessed("1")
	require.NoError(t, s.Save(small))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, loaded.ProcessedIDs())
}
