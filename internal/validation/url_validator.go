package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	errpkg "github.com/veranemoloko/fetchd/internal/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("transfer_url", validateTransferURL)
}

// ValidateURL rejects URLs with unsupported schemes or hosts the engine
// must never fetch from.
func ValidateURL(raw string) error {
	if err := validate.Var(raw, "required,transfer_url"); err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	return nil
}

// CheckAllowedDomain enforces the configured domain allow-list. An empty
// list allows everything; magnet links carry no host and always pass.
func CheckAllowedDomain(raw string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if strings.EqualFold(u.Scheme, "magnet") {
		return nil
	}

	host := strings.ToLower(u.Hostname())
	for _, d := range allowed {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", errpkg.ErrDomainNotAllowed, host)
}

func validateTransferURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "magnet":
		// Magnet links carry their payload in the query, not a host.
		return u.RawQuery != ""
	case "http", "https":
	default:
		return false
	}

	if u.Host == "" {
		return false
	}

	host := u.Hostname()

	forbiddenHosts := []string{
		"localhost",
		"127.0.0.1",
		"::1",
		"0.0.0.0",
		"169.254.169.254",
	}

	for _, forbidden := range forbiddenHosts {
		if strings.EqualFold(host, forbidden) {
			return false
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() {
			return false
		}
	}

	return true
}
