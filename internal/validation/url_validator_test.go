package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	errpkg "github.com/veranemoloko/fetchd/internal/errors"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"plain http", "http://example.com/file.zip", false},
		{"https", "https://cdn.example.com/a/b/c.iso", false},
		{"magnet", "magnet:?xt=urn:btih:deadbeef&dn=thing", false},
		{"magnet without payload", "magnet:", true},
		{"ftp scheme", "ftp://example.com/file", true},
		{"file scheme", "file:///etc/passwd", true},
		{"no host", "http://", true},
		{"empty", "", true},
		{"localhost", "http://localhost:8080/x", true},
		{"loopback ip", "http://127.0.0.1/x", true},
		{"ipv6 loopback", "http://[::1]/x", true},
		{"zero address", "http://0.0.0.0/x", true},
		{"metadata endpoint", "http://169.254.169.254/latest/meta-data", true},
		{"private ip", "http://192.168.1.10/x", true},
		{"ten dot", "http://10.0.0.5/x", true},
		{"public ip", "http://93.184.216.34/x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckAllowedDomain(t *testing.T) {
	allowed := []string{"example.com", "archive.org"}

	assert.NoError(t, CheckAllowedDomain("http://example.com/f", allowed))
	assert.NoError(t, CheckAllowedDomain("http://cdn.example.com/f", allowed))
	assert.NoError(t, CheckAllowedDomain("https://ARCHIVE.ORG/item", allowed))

	err := CheckAllowedDomain("http://evil.com/f", allowed)
	assert.ErrorIs(t, err, errpkg.ErrDomainNotAllowed)

	// Suffix matching must not treat "notexample.com" as a subdomain.
	err = CheckAllowedDomain("http://notexample.com/f", allowed)
	assert.ErrorIs(t, err, errpkg.ErrDomainNotAllowed)
}

func TestCheckAllowedDomain_EmptyListAllowsAll(t *testing.T) {
	assert.NoError(t, CheckAllowedDomain("http://anything.net/f", nil))
}

func TestCheckAllowedDomain_MagnetAlwaysPasses(t *testing.T) {
	assert.NoError(t, CheckAllowedDomain("magnet:?xt=urn:btih:deadbeef", []string{"example.com"}))
}
