// Package backend maps jobs to external transfer workers: it classifies
// URLs, builds per-backend command invocations, and parses worker output
// into progress updates.
package backend

import (
	"net/url"
	"path"
	"strings"

	"github.com/veranemoloko/fetchd/internal/domain"
)

// Hints carries advisory inputs to classification gathered before
// submission, e.g. from a content-type probe.
type Hints struct {
	// ForceVideo routes to the video backend unconditionally.
	ForceVideo bool
	// ContentType is the Content-Type reported by a HEAD probe, if any.
	ContentType string
}

var videoHosts = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"twitch.tv",
	"dailymotion.com",
	"rutube.ru",
}

var manifestContentTypes = []string{
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"audio/mpegurl",
	"application/dash+xml",
}

var manifestExts = []string{".m3u8", ".mpd"}

// Classify maps a URL to a transfer backend. Rules apply in priority
// order: magnet scheme, video platform or manifest content type, manifest
// extension, plain direct download.
func Classify(rawURL string, hints Hints) domain.BackendKind {
	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.BackendDirect
	}

	if strings.EqualFold(u.Scheme, "magnet") {
		return domain.BackendTorrent
	}

	if hints.ForceVideo || isVideoHost(u.Hostname()) || isManifestContentType(hints.ContentType) {
		return domain.BackendVideo
	}

	ext := strings.ToLower(path.Ext(u.Path))
	for _, e := range manifestExts {
		if ext == e {
			return domain.BackendStream
		}
	}

	return domain.BackendDirect
}

func isVideoHost(host string) bool {
	host = strings.ToLower(host)
	for _, v := range videoHosts {
		if host == v || strings.HasSuffix(host, "."+v) {
			return true
		}
	}
	return false
}

func isManifestContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return false
	}
	// Strip parameters like "; charset=utf-8".
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, m := range manifestContentTypes {
		if ct == m {
			return true
		}
	}
	return false
}
