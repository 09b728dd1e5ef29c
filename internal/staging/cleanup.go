package staging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/jvs-project/epubpack/pkg/logging"
)

// CleanStaleResult contains the outcome of a stale root cleanup.
type CleanStaleResult struct {
	Removed []string
	Skipped []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes session roots under stagingDir older than maxAge whose
// lock is not held by a live session. Roots left behind by crashed
// processes are reclaimed; roots of running sessions are skipped.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *logging.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	if logger == nil {
		logger = logging.Discard()
	}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
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
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: ctx.Err()})
			return result
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), SessionPrefix) {
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

		lk := flock.New(dirPath + LockSuffix)
		locked, err := lk.TryLock()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !locked {
			result.Skipped = append(result.Skipped, dirPath)
			logger.Debug("skipping staging root in use", map[string]any{"path": dirPath})
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logger.WarnErr("failed to remove stale staging root", err, map[string]any{"path": dirPath})
		} else {
			result.Removed = append(result.Removed, dirPath)
			logger.Info("removed stale staging root", map[string]any{
				"path": dirPath,
				"age":  time.Since(info.ModTime()).Round(time.Second).String(),
			})
		}
		lk.Unlock()
		os.Remove(lk.Path())
	}
	return result
}
