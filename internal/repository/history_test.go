package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/fetchd/internal/domain"
	errpkg "github.com/veranemoloko/fetchd/internal/errors"
)

func TestHistoryStore_AppendGetList(t *testing.T) {
	file := t.TempDir() + "/history.json"
	store, err := NewHistoryStore(file)
	require.NoError(t, err)

	rec := domain.HistoryRecord{
		ID:          "a",
		URL:         "http://host/a.bin",
		Filename:    "a.bin",
		Size:        1234,
		CompletedAt: time.Now(),
	}
	require.NoError(t, store.Append(rec))

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), got.Size)
	assert.False(t, got.Retrieved)

	assert.Len(t, store.List(), 1)
}

func TestHistoryStore_GetUnknown(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir() + "/history.json")
	require.NoError(t, err)

	_, err = store.Get("nope")
	assert.ErrorIs(t, err, errpkg.ErrJobNotFound)
}

func TestHistoryStore_MarkRetrieved(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir() + "/history.json")
	require.NoError(t, err)

	require.NoError(t, store.Append(domain.HistoryRecord{ID: "a", Filename: "a.bin"}))
	require.NoError(t, store.MarkRetrieved("a"))

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.True(t, got.Retrieved)

	assert.ErrorIs(t, store.MarkRetrieved("nope"), errpkg.ErrJobNotFound)
}

func TestHistoryStore_SurvivesRestart(t *testing.T) {
	file := t.TempDir() + "/history.json"

	store, err := NewHistoryStore(file)
	require.NoError(t, err)
	require.NoError(t, store.Append(domain.HistoryRecord{ID: "a", Filename: "a.bin", Size: 7}))
	require.NoError(t, store.Append(domain.HistoryRecord{ID: "b", Filename: "b.bin", Size: 8}))

	reopened, err := NewHistoryStore(file)
	require.NoError(t, err)
	assert.Len(t, reopened.List(), 2)

	got, err := reopened.Get("b")
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Size)
}
