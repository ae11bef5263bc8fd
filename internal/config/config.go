package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"FD_ENV" default:"development"`

	HTTPPort    int           `envconfig:"FD_HTTP_PORT" default:"8080"`
	HTTPTimeout time.Duration `envconfig:"FD_HTTP_TIMEOUT" default:"15s"`

	MaxConcurrent int           `envconfig:"FD_MAX_CONCURRENT" default:"3"`
	MaxRetries    int           `envconfig:"FD_MAX_RETRIES" default:"2"`
	RetryBackoff  time.Duration `envconfig:"FD_RETRY_BACKOFF" default:"5s"`
	JobTimeout    time.Duration `envconfig:"FD_JOB_TIMEOUT" default:"1h"`

	DownloadDir string `envconfig:"FD_DOWNLOAD_DIR" default:"./storage"`
	StateFile   string `envconfig:"FD_STATE_FILE" default:"./state.json"`
	HistoryFile string `envconfig:"FD_HISTORY_FILE" default:"./history.json"`
	RoutesFile  string `envconfig:"FD_ROUTES_FILE" default:""`

	// AllowedDomains restricts submissions to the listed hosts (and their
	// subdomains). Empty means any host is accepted.
	AllowedDomains []string `envconfig:"FD_ALLOWED_DOMAINS"`

	ShutdownTimeout time.Duration `envconfig:"FD_SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"FD_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"FD_LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent jobs must be positive: %d", c.MaxConcurrent)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative: %d", c.MaxRetries)
	}

	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative: %s", c.RetryBackoff)
	}

	if c.JobTimeout <= 0 {
		return fmt.Errorf("job timeout must be positive: %s", c.JobTimeout)
	}

	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state file cannot be empty")
	}
	if c.HistoryFile == "" {
		return fmt.Errorf("history file cannot be empty")
	}

	return nil
}
