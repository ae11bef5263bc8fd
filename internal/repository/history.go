package repository

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/veranemoloko/fetchd/internal/domain"
	errpkg "github.com/veranemoloko/fetchd/internal/errors"
)

// HistoryStore keeps one immutable record per successfully completed job,
// persisted independently of the active snapshot. Records are only ever
// appended; the single exception is the retrieved flag flipped when the
// artifact is claimed.
type HistoryStore struct {
	mu      sync.RWMutex
	file    string
	records []*domain.HistoryRecord
	index   map[string]*domain.HistoryRecord
}

// NewHistoryStore creates a store backed by the given file and loads any
// existing records.
func NewHistoryStore(filePath string) (*HistoryStore, error) {
	h := &HistoryStore{
		file:  filepath.Clean(filePath),
		index: make(map[string]*domain.HistoryRecord),
	}

	if err := h.load(); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	slog.Info("history store initialized", "file_path", h.file, "records_count", len(h.records))
	return h, nil
}

func (h *HistoryStore) load() error {
	data, err := os.ReadFile(h.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read history file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &h.records); err != nil {
		return fmt.Errorf("failed to unmarshal history file: %w", err)
	}
	for _, rec := range h.records {
		h.index[rec.ID] = rec
	}
	return nil
}

// Append adds a completed-job record and persists the file.
func (h *HistoryStore) Append(rec domain.HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := rec
	h.records = append(h.records, &r)
	h.index[r.ID] = &r

	return h.persist()
}

// Get returns the record for the given job id.
func (h *HistoryStore) Get(id string) (domain.HistoryRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rec, ok := h.index[id]
	if !ok {
		return domain.HistoryRecord{}, errpkg.ErrJobNotFound
	}
	return *rec, nil
}

// List returns all records in completion order.
func (h *HistoryStore) List() []domain.HistoryRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.HistoryRecord, 0, len(h.records))
	for _, rec := range h.records {
		out = append(out, *rec)
	}
	return out
}

// MarkRetrieved flips the retrieved flag once the artifact has been fully
// delivered and deleted.
func (h *HistoryStore) MarkRetrieved(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.index[id]
	if !ok {
		return errpkg.ErrJobNotFound
	}
	rec.Retrieved = true

	return h.persist()
}

func (h *HistoryStore) persist() error {
	data, err := json.MarshalIndent(h.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tempFile := h.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, h.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
