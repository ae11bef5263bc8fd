package domain

// EventType distinguishes the first announcement of a job from later
// state changes.
type EventType string

const (
	EventJobCreated EventType = "created"
	EventJobUpdated EventType = "update"
)

// Event is published to subscribers for every job state transition and
// accepted progress update. Job is always a detached copy.
type Event struct {
	Type EventType `json:"type"`
	Job  *Job      `json:"job"`
}
