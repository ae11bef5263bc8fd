// Package repository persists engine state: the job snapshot used for
// crash recovery and the append-only history of completed jobs.
package repository

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/veranemoloko/fetchd/internal/domain"
)

// SnapshotStore writes the full set of tracked jobs to a single JSON
// file, fully overwritten on every save. It holds no job state itself;
// the engine owns the table and hands over copies.
type SnapshotStore struct {
	mu   sync.Mutex
	file string
}

// NewSnapshotStore creates a store writing to the given file path.
func NewSnapshotStore(filePath string) *SnapshotStore {
	return &SnapshotStore{file: filepath.Clean(filePath)}
}

// Save overwrites the snapshot file with the given job records. The write
// goes through a temp file and rename so a crash never leaves a torn
// snapshot behind.
func (s *SnapshotStore) Save(jobs []*domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}

	tempFile := s.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, s.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	slog.Debug("state saved to file", "jobs_count", len(jobs), "file_path", s.file)
	return nil
}

// Load reads the snapshot written by a previous run. Jobs found in an
// in-flight status are rewritten to interrupted with a synthetic error,
// because their worker processes no longer exist. A missing or empty file
// yields an empty result.
func (s *SnapshotStore) Load() ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.file)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("state file does not exist, starting with empty state", "file_path", s.file)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) == 0 {
		slog.Warn("state file is empty", "file_path", s.file)
		return nil, nil
	}

	var jobs []*domain.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state file: %w", err)
	}

	interrupted := 0
	for _, job := range jobs {
		if job.Status.IsActive() {
			job.Status = domain.StatusInterrupted
			job.SetError("interrupted by restart")
			interrupted++
		}
	}

	slog.Info("state loaded from file", "jobs_count", len(jobs), "interrupted", interrupted, "file_path", s.file)
	return jobs, nil
}
