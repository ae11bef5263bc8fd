// Package storage manages completed artifacts on disk: measuring,
// routing them into destination subdirectories, streaming them out, and
// cleaning up partial output.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// RouteRule maps a set of artifact extensions to a destination
// subdirectory. Rules apply in order; the first match wins.
type RouteRule struct {
	Extensions []string `json:"extensions"`
	Dir        string   `json:"dir"`
}

// FileStorage provides methods to manage artifacts under the download
// directory.
type FileStorage struct {
	dir    string
	routes []RouteRule
	logger *slog.Logger
}

// NewFileStorage creates a new FileStorage rooted at dir with the given
// routing rules.
func NewFileStorage(dir string, routes []RouteRule, logger *slog.Logger) *FileStorage {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStorage{dir: dir, routes: routes, logger: logger}
}

// LoadRoutes reads routing rules from an optional JSON file. An empty
// path or a missing file yields no rules.
func LoadRoutes(path string) ([]RouteRule, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}

	var routes []RouteRule
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal routes file: %w", err)
	}
	return routes, nil
}

// Finalize measures the artifact and moves it per the routing rules.
// It returns the (possibly updated) path relative to the root directory
// and the artifact size in bytes, 0 if unknown. Every failure here is
// non-fatal: the job completed, the artifact just stays where it is.
func (s *FileStorage) Finalize(relPath string) (string, int64) {
	full, err := s.resolve(relPath)
	if err != nil {
		s.logger.Warn("artifact path rejected", "path", relPath, "error", err)
		return relPath, 0
	}

	var size int64
	if info, err := os.Stat(full); err == nil {
		size = info.Size()
	} else {
		s.logger.Warn("failed to measure artifact", "path", relPath, "error", err)
	}

	destDir := s.matchRoute(relPath)
	if destDir == "" {
		return relPath, size
	}

	if err := os.MkdirAll(filepath.Join(s.dir, destDir), 0o755); err != nil {
		s.logger.Warn("failed to create route directory", "dir", destDir, "error", err)
		return relPath, size
	}

	newRel := filepath.Join(destDir, filepath.Base(relPath))
	if err := os.Rename(full, filepath.Join(s.dir, newRel)); err != nil {
		s.logger.Warn("failed to move artifact", "path", relPath, "dest", newRel, "error", err)
		return relPath, size
	}

	s.logger.Info("artifact routed", "path", relPath, "dest", newRel)
	return newRel, size
}

func (s *FileStorage) matchRoute(relPath string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(relPath)), ".")
	if ext == "" {
		return ""
	}
	for _, rule := range s.routes {
		for _, e := range rule.Extensions {
			if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
				return rule.Dir
			}
		}
	}
	return ""
}

// Open opens an artifact for streaming to a client.
func (s *FileStorage) Open(relPath string) (*os.File, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Remove deletes a delivered artifact.
func (s *FileStorage) Remove(relPath string) error {
	full, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

// RemovePartials attempts to clean up partial output left behind by a
// cancelled worker, including downloader control files. Best-effort only.
func (s *FileStorage) RemovePartials(relPath string) {
	full, err := s.resolve(relPath)
	if err != nil {
		return
	}
	for _, p := range []string{full, full + ".aria2", full + ".part", full + ".ytdl"} {
		if err := os.Remove(p); err == nil {
			s.logger.Debug("partial artifact removed", "path", p)
		}
	}
}

// resolve joins relPath with the root and rejects paths escaping it.
func (s *FileStorage) resolve(relPath string) (string, error) {
	root := filepath.Clean(s.dir)
	full := filepath.Join(root, filepath.Clean("/"+relPath))
	if full == root || !strings.HasPrefix(full, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes storage root: %s", relPath)
	}
	return full, nil
}
