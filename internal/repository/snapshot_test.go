package repository

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/fetchd/internal/domain"
)

func TestSnapshotStore_SaveLoad(t *testing.T) {
	file := t.TempDir() + "/state.json"
	store := NewSnapshotStore(file)

	jobs := []*domain.Job{
		{ID: "a", URL: "http://host/a", Status: domain.StatusQueued},
		{ID: "b", URL: "http://host/b", Status: domain.StatusCompleted, Progress: 100},
	}
	require.NoError(t, store.Save(jobs))

	got, err := store.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, domain.StatusQueued, got[0].Status)
	assert.Equal(t, domain.StatusCompleted, got[1].Status)
}

func TestSnapshotStore_LoadRewritesInFlightToInterrupted(t *testing.T) {
	file := t.TempDir() + "/state.json"
	store := NewSnapshotStore(file)

	jobs := []*domain.Job{
		{ID: "a", Status: domain.StatusDownloading, Progress: 40},
		{ID: "b", Status: domain.StatusRetrying, RetryCount: 1},
		{ID: "c", Status: domain.StatusError, Error: "worker exited with code 3"},
	}
	require.NoError(t, store.Save(jobs))

	got, err := store.Load()
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, domain.StatusInterrupted, got[0].Status)
	assert.Equal(t, "interrupted by restart", got[0].Error)
	assert.Equal(t, domain.StatusInterrupted, got[1].Status)
	assert.Equal(t, domain.StatusError, got[2].Status)
	assert.Equal(t, "worker exited with code 3", got[2].Error)
}

func TestSnapshotStore_LoadMissingFile(t *testing.T) {
	store := NewSnapshotStore(t.TempDir() + "/missing.json")

	got, err := store.Load()
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotStore_LoadEmptyFile(t *testing.T) {
	file := t.TempDir() + "/state.json"
	require.NoError(t, os.WriteFile(file, nil, 0644))

	got, err := NewSnapshotStore(file).Load()
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotStore_SaveOverwrites(t *testing.T) {
	file := t.TempDir() + "/state.json"
	store := NewSnapshotStore(file)

	require.NoError(t, store.Save([]*domain.Job{{ID: "a"}, {ID: "b"}}))
	require.NoError(t, store.Save([]*domain.Job{{ID: "c"}}))

	got, err := store.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}
