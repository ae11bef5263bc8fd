package backend

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const probeTimeout = 5 * time.Second

// Probe issues a HEAD request and reports the response content type as a
// classification hint. Streaming manifests frequently hide behind
// extension-less URLs, so the content type is the only reliable signal.
// Any probe failure yields empty hints; classification proceeds without.
func Probe(ctx context.Context, rawURL, userAgent, referer string) Hints {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return Hints{}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return Hints{}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Debug("content-type probe failed", "url", rawURL, "error", err)
		return Hints{}
	}
	defer resp.Body.Close()

	return Hints{ContentType: resp.Header.Get("Content-Type")}
}
