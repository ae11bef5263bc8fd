package domain

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxFilenameLen caps sanitized filenames; longer names are truncated
// keeping the extension.
const MaxFilenameLen = 128

// maxErrorLen caps the single-line error message recorded on a job.
const maxErrorLen = 300

// TransferConfig holds the immutable transfer parameters captured at
// submission and passed through to the backend invocation.
type TransferConfig struct {
	Referer     string `json:"referer,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	Cookie      string `json:"cookie,omitempty"`
	InsecureTLS bool   `json:"insecure_tls,omitempty"`
	Connections int    `json:"connections,omitempty"`
	Format      string `json:"format,omitempty"`
}

// Job is the central entity: one submitted transfer request and its
// tracked lifecycle. ID, URL, Filename, Backend and Config are immutable
// once assigned; progress fields are written only while the job is active.
type Job struct {
	ID       string      `json:"id"`
	URL      string      `json:"url"`
	Filename string      `json:"filename"`
	Backend  BackendKind `json:"backend"`
	Status   JobStatus   `json:"status"`

	Progress    float64 `json:"progress"`
	Speed       string  `json:"speed,omitempty"`
	ETA         string  `json:"eta,omitempty"`
	CurrentSize int64   `json:"current_size,omitempty"`
	FullSize    int64   `json:"full_size,omitempty"`

	Error         string `json:"error,omitempty"`
	RetryCount    int    `json:"retry_count"`
	QueuePosition int    `json:"queue_position,omitempty"`

	Config TransferConfig `json:"config"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a copy safe to hand to subscribers and encoders while the
// original keeps being mutated by the engine loop.
func (j *Job) Clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// SetError records a failure message on the job, flattened to a single
// truncated line.
func (j *Job) SetError(msg string) {
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	j.Error = msg
}

// HistoryRecord is the immutable terminal-state copy kept for every
// successfully completed job.
type HistoryRecord struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	CompletedAt time.Time `json:"completed_at"`
	Retrieved   bool      `json:"retrieved"`
}

// NewJobID generates an opaque unique job identifier.
func NewJobID() string {
	return uuid.New().String()
}

// SanitizeFilename reduces a name to a safe character set and caps its
// length, preserving the extension. An empty result falls back to the last
// URL path segment and finally to the job id.
func SanitizeFilename(name, rawURL, id string) string {
	cleaned := ""
	if name != "" {
		cleaned = sanitize(path.Base(name))
	}
	if cleaned == "" {
		if u, err := url.Parse(rawURL); err == nil {
			if base := path.Base(u.Path); base != "/" && base != "." {
				cleaned = sanitize(base)
			}
		}
	}
	if cleaned == "" {
		cleaned = id + ".bin"
	}
	if len(cleaned) > MaxFilenameLen {
		ext := path.Ext(cleaned)
		if len(ext) > 16 {
			ext = ""
		}
		cleaned = cleaned[:MaxFilenameLen-len(ext)] + ext
	}
	return cleaned
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_' || r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(strings.TrimSpace(b.String()), ".")
}
