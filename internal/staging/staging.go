// Package staging manages the per-run work directories compile creates under
// paths.staging_dir. Each run owns one directory named compile-*; directories
// left behind by killed runs are reclaimed once they are old enough.
package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bapple/internal/logging"
)

// Prefix marks directories owned by this package.
const Prefix = "compile-"

// DefaultMaxAge is how old an abandoned work directory must be before
// CleanStale removes it. Long encodes keep touching their directory.
const DefaultMaxAge = 24 * time.Hour

// Create makes a fresh work directory inside root.
func Create(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", errors.New("staging directory not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	dir, err := os.MkdirTemp(root, Prefix+"*")
	if err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	return dir, nil
}

// CleanResult reports what CleanStale did.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes work directories in root not modified within maxAge.
// Other entries in root are never touched.
func CleanStale(root string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	var result CleanResult
	entries, err := workDirs(root)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		return result
	}
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.modTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(entry.path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entry.path, Error: err})
			if logger != nil {
				logging.WarnWithContext(logger, "failed to remove stale work directory", "staging_cleanup_failed",
					logging.String("path", entry.path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check paths.staging_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, entry.path)
		if logger != nil {
			logger.Info("removed stale work directory",
				logging.String("path", entry.path),
				logging.Duration("age", time.Since(entry.modTime)),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}
	return result
}

// Usage summarizes the work directories present in root.
type Usage struct {
	Dirs   int
	Bytes  int64
	Oldest time.Time
}

// Measure walks every work directory in root.
func Measure(root string) (Usage, error) {
	entries, err := workDirs(root)
	if err != nil {
		return Usage{}, err
	}
	var usage Usage
	for _, entry := range entries {
		usage.Dirs++
		usage.Bytes += dirSize(entry.path)
		if usage.Oldest.IsZero() || entry.modTime.Before(usage.Oldest) {
			usage.Oldest = entry.modTime
		}
	}
	return usage, nil
}

type workDir struct {
	path    string
	modTime time.Time
}

func workDirs(root string) ([]workDir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []workDir
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, workDir{path: filepath.Join(root, entry.Name()), modTime: info.ModTime()})
	}
	return dirs, nil
}

// dirSize is best effort; unreadable entries count as zero.
func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
