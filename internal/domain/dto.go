package domain

import "time"

// SubmitRequest is the request body for submitting a new transfer.
type SubmitRequest struct {
	URL         string `json:"url" validate:"required,max=4096"`
	Filename    string `json:"filename,omitempty" validate:"omitempty,max=255"`
	Referer     string `json:"referer,omitempty" validate:"omitempty,max=4096"`
	UserAgent   string `json:"user_agent,omitempty" validate:"omitempty,max=512"`
	Cookie      string `json:"cookie,omitempty" validate:"omitempty,max=8192"`
	InsecureTLS bool   `json:"insecure_tls,omitempty"`
	Connections int    `json:"connections,omitempty" validate:"omitempty,min=1,max=16"`
	Format      string `json:"format,omitempty" validate:"omitempty,max=128"`

	// ForceVideo routes the job to the video backend regardless of
	// classification, used when the caller already probed the content.
	ForceVideo bool `json:"force_video,omitempty"`
}

// SubmitResponse is returned for an accepted submission.
type SubmitResponse struct {
	ID            string    `json:"id"`
	Status        JobStatus `json:"status"`
	QueuePosition int       `json:"queue_position"`
}

// CancelResponse reports how many jobs a cancel request affected.
type CancelResponse struct {
	Cancelled int `json:"cancelled"`
}

// ConfigResponse exposes the engine limits to clients.
type ConfigResponse struct {
	MaxConcurrent  int           `json:"max_concurrent"`
	MaxRetries     int           `json:"max_retries"`
	JobTimeout     time.Duration `json:"job_timeout"`
	AllowedDomains []string      `json:"allowed_domains,omitempty"`
}
