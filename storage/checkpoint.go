package storage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"livability-pipeline/models"
)

// JSONCheckpointStore keeps the checkpoint in a single JSON file that is
// replaced atomically on every save.
type JSONCheckpointStore struct {
	path string
	now  func() time.Time
}

// NewJSONCheckpointStore returns a store for the file at path.
func NewJSONCheckpointStore(path string) *JSONCheckpointStore {
	return &JSONCheckpointStore{path: path, now: time.Now}
}

// Path returns the checkpoint file location.
func (s *JSONCheckpointStore) Path() string { return s.path }

// Load reads the checkpoint. A missing file yields an empty state.
func (s *JSONCheckpointStore) Load() (*models.CheckpointState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewCheckpointState(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: read %s", s.path)
	}

	state := models.NewCheckpointState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, eris.Wrapf(err, "checkpoint: decode %s", s.path)
	}
	return state, nil
}

// Save stamps last_updated and atomically replaces the checkpoint file.
func (s *JSONCheckpointStore) Save(state *models.CheckpointState) error {
	state.LastUpdated = s.now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return eris.Wrap(err, "checkpoint: encode")
	}
	if err := writeFileAtomic(s.path, data, 0644); err != nil {
		return eris.Wrapf(err, "checkpoint: save %s", s.path)
	}
	return nil
}
