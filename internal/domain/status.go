package domain

// JobStatus represents the current state of a Job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusDownloading JobStatus = "downloading"
	StatusRetrying    JobStatus = "retrying"
	StatusCompleted   JobStatus = "completed"
	StatusError       JobStatus = "error"
	StatusCancelled   JobStatus = "cancelled"
	StatusInterrupted JobStatus = "interrupted"
)

// IsTerminal reports whether a job in this status has finished for good.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled, StatusInterrupted:
		return true
	}
	return false
}

// IsActive reports whether a job in this status holds a concurrency slot.
func (s JobStatus) IsActive() bool {
	return s == StatusDownloading || s == StatusRetrying
}

// BackendKind identifies the external transfer backend a job is routed to.
type BackendKind string

const (
	BackendDirect  BackendKind = "direct"
	BackendVideo   BackendKind = "video"
	BackendStream  BackendKind = "stream"
	BackendTorrent BackendKind = "torrent"
)
