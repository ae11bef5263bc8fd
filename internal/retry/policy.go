// Package retry decides whether a failed job gets another attempt.
package retry

import (
	"strings"
	"time"
)

// Policy classifies worker failures as transient or terminal. Signatures
// and exit codes are plain data so deployments can adjust them to the
// backend versions they run; nothing in the engine depends on the exact
// set.
type Policy struct {
	MaxRetries int
	Backoff    time.Duration

	// Signatures are lowercase substrings matched against collected
	// worker output.
	Signatures []string
	// ExitCodes are worker exit codes treated as transient.
	ExitCodes []int
}

// DefaultPolicy returns the stock transient-failure signatures: network
// resets, timeouts, TLS handshake failures, rate limiting, and the aria2
// exit codes for network and timeout errors.
func DefaultPolicy(maxRetries int, backoff time.Duration) Policy {
	return Policy{
		MaxRetries: maxRetries,
		Backoff:    backoff,
		Signatures: []string{
			"connection reset",
			"connection refused",
			"timed out",
			"timeout",
			"tls handshake",
			"ssl",
			"429",
			"rate limit",
			"temporarily unavailable",
			"temporary failure",
		},
		// aria2c: 2 = timeout, 6 = network problem.
		ExitCodes: []int{2, 6},
	}
}

// ShouldRetry reports whether a failed attempt is worth repeating. Launch
// failures are never retried; the supervisor filters those out before the
// policy runs.
func (p Policy) ShouldRetry(retryCount, exitCode int, errText string) bool {
	if retryCount >= p.MaxRetries {
		return false
	}
	return p.transient(exitCode, errText)
}

func (p Policy) transient(exitCode int, errText string) bool {
	text := strings.ToLower(errText)
	for _, sig := range p.Signatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	for _, code := range p.ExitCodes {
		if exitCode == code {
			return true
		}
	}
	return false
}
