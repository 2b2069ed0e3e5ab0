package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"medialog/internal/logging"
)

// CleanStaleResult contains the outcome of a stale run cleanup.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes run directories under stagingDir older than maxAge.
// Runs that crashed before Stager.Close leave their directories behind; this
// reclaims them. Callers hold the staging Lock so a live run is never swept.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" || maxAge <= 0 {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale run directory", "staging_cleanup_failed",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		if logger != nil {
			logger.Info("removed stale run directory",
				logging.String("path", dirPath),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}

	return result
}

// ListDirectories returns the run directories under stagingDir with their metadata.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		dirPath := filepath.Join(stagingDir, entry.Name())
		size, _ := dirSize(dirPath)

		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}

	return dirs, nil
}

// DirInfo contains metadata about a run directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
