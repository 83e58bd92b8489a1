package learning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kb-advisor/backend/internal/classifier"
	"github.com/kb-advisor/backend/internal/index"
)

// Snapshot is the complete fitted state of the vector index and the
// classifier ensemble at one point in time, plus training metadata.
// Snapshots are immutable: retraining builds a fresh one and swaps it
// in whole, never mutates the live one.
type Snapshot struct {
	Index             *index.State       `json:"index"`
	Classifier        *classifier.State  `json:"classifier"`
	TrainedAt         time.Time          `json:"trained_at"`
	CaseCount         int                `json:"case_count"`
	PerSystemAccuracy map[string]float64 `json:"per_system_accuracy"`
	Version           int                `json:"version"`
}

// emptySnapshot is the cold-start state: untrained index and
// classifier, version zero.
func emptySnapshot(disagreementPenalty float64) *Snapshot {
	return &Snapshot{
		Index:      &index.State{},
		Classifier: &classifier.State{DisagreementPenalty: disagreementPenalty},
	}
}

// Trained reports whether this snapshot came out of a training pass.
func (s *Snapshot) Trained() bool {
	return s.Version > 0 && !s.Index.Empty()
}

// saveSnapshot serializes to a temp file in the target directory and
// renames it into place, so a crashed write never corrupts the
// snapshot read at next startup.
func saveSnapshot(s *Snapshot, path string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// loadSnapshot reads a previously persisted snapshot. A missing file
// is not an error: the caller starts cold.
func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &s, nil
}
