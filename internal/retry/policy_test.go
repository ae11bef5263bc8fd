package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_TransientSignatures(t *testing.T) {
	p := DefaultPolicy(2, time.Second)

	assert.True(t, p.ShouldRetry(0, 0, "curl: (56) Connection reset by peer"))
	assert.True(t, p.ShouldRetry(0, 0, "ERROR: HTTP Error 429: Too Many Requests"))
	assert.True(t, p.ShouldRetry(1, 0, "read tcp: i/o timed out"))
	assert.True(t, p.ShouldRetry(0, 0, "TLS handshake failure"))
	assert.True(t, p.ShouldRetry(0, 0, "Name or service temporarily unavailable"))
}

func TestPolicy_TransientExitCodes(t *testing.T) {
	p := DefaultPolicy(2, time.Second)

	assert.True(t, p.ShouldRetry(0, 2, "no useful output"))
	assert.True(t, p.ShouldRetry(0, 6, ""))
	assert.False(t, p.ShouldRetry(0, 3, "resource not found"))
}

func TestPolicy_TerminalFailures(t *testing.T) {
	p := DefaultPolicy(2, time.Second)

	assert.False(t, p.ShouldRetry(0, 22, "ERROR: unsupported URL"))
	assert.False(t, p.ShouldRetry(0, 13, "file already exists"))
}

func TestPolicy_RetriesExhausted(t *testing.T) {
	p := DefaultPolicy(2, time.Second)

	assert.True(t, p.ShouldRetry(1, 0, "connection reset"))
	assert.False(t, p.ShouldRetry(2, 0, "connection reset"))
	assert.False(t, p.ShouldRetry(3, 0, "connection reset"))
}

func TestPolicy_ZeroRetries(t *testing.T) {
	p := DefaultPolicy(0, time.Second)

	assert.False(t, p.ShouldRetry(0, 0, "connection reset"))
}

func TestPolicy_CustomSignatures(t *testing.T) {
	p := Policy{MaxRetries: 1, Signatures: []string{"quota exceeded"}}

	assert.True(t, p.ShouldRetry(0, 0, "daily QUOTA EXCEEDED, try later"))
	assert.False(t, p.ShouldRetry(0, 0, "connection reset"))
}
