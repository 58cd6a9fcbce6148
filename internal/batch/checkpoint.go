package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// Checkpoint records the last row whose output has been durably flushed.
// Every row with index <= LastCompletedIndex is in the output file; resuming
// starts at LastCompletedIndex + 1.
type Checkpoint struct {
	RunID              string    `json:"run_id"`
	Provider           string    `json:"provider"`
	LastCompletedIndex int       `json:"last_completed_index"`
	ChunkSize          int       `json:"chunk_size"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CheckpointStore persists checkpoints as a JSON sidecar next to the output
// file. Commits are atomic (temp file + rename) so a crash mid-commit leaves
// the previous checkpoint intact.
type CheckpointStore struct {
	path string
}

// NewCheckpointStore creates a store keyed to outputPath.
func NewCheckpointStore(outputPath string) *CheckpointStore {
	return &CheckpointStore{path: outputPath + ".checkpoint"}
}

// Path returns the sidecar file path.
func (s *CheckpointStore) Path() string { return s.path }

// Load reads the checkpoint, returning nil (no error) when none exists.
func (s *CheckpointStore) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read checkpoint %s", s.path)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, eris.Wrapf(err, "batch: parse checkpoint %s", s.path)
	}
	return &cp, nil
}

// Commit durably persists cp, stamping UpdatedAt.
func (s *CheckpointStore) Commit(cp Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return eris.Wrap(err, "batch: marshal checkpoint")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".checkpoint-*")
	if err != nil {
		return eris.Wrap(err, "batch: create checkpoint temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "batch: write checkpoint")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "batch: sync checkpoint")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "batch: close checkpoint temp file")
	}

	return eris.Wrapf(os.Rename(tmp.Name(), s.path), "batch: replace checkpoint %s", s.path)
}
