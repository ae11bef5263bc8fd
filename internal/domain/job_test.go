package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	id := "abc-123"

	assert.Equal(t, "report.pdf", SanitizeFilename("report.pdf", "", id))
	assert.Equal(t, "my file_1.bin", SanitizeFilename("my file:1.bin", "", id))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd", "", id))
}

func TestSanitizeFilename_FallbackToURL(t *testing.T) {
	id := "abc-123"

	assert.Equal(t, "video.mp4", SanitizeFilename("", "https://host/path/video.mp4", id))
	assert.Equal(t, id+".bin", SanitizeFilename("", "https://host/", id))
	assert.Equal(t, id+".bin", SanitizeFilename("", "::broken::", id))
}

func TestSanitizeFilename_LengthCap(t *testing.T) {
	long := strings.Repeat("a", 300) + ".mp4"
	got := SanitizeFilename(long, "", "id")

	assert.LessOrEqual(t, len(got), MaxFilenameLen)
	assert.True(t, strings.HasSuffix(got, ".mp4"))
}

func TestJob_SetError(t *testing.T) {
	job := &Job{}
	job.SetError("line one\nline two\t  spaced")
	assert.Equal(t, "line one line two spaced", job.Error)

	job.SetError(strings.Repeat("x", 1000))
	assert.Len(t, job.Error, 300)
}

func TestJob_Clone(t *testing.T) {
	now := time.Now()
	job := &Job{ID: "a", Status: StatusDownloading, StartedAt: &now}

	clone := job.Clone()
	clone.Status = StatusCompleted
	later := now.Add(time.Hour)
	clone.StartedAt = &later

	assert.Equal(t, StatusDownloading, job.Status)
	assert.Equal(t, now, *job.StartedAt)
}

func TestJobStatus_Predicates(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusInterrupted.IsTerminal())
	assert.False(t, StatusQueued.IsTerminal())
	assert.False(t, StatusRetrying.IsTerminal())

	assert.True(t, StatusDownloading.IsActive())
	assert.True(t, StatusRetrying.IsActive())
	assert.False(t, StatusQueued.IsActive())
	assert.False(t, StatusCancelled.IsActive())
}
