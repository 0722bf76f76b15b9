package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bisub/internal/logging"
)

// CleanStaleResult lists what one sweep removed and what it could not.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError is a directory the sweep failed to read or remove.
type CleanupError struct {
	Path  string
	Error error
}

// DirInfo describes one job directory under the staging root.
type DirInfo struct {
	Name    string
	Path    string
	JobID   int64
	ModTime time.Time
	Size    int64
}

// CleanStale removes job directories not modified within maxAge.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	cutoff := time.Now().Add(-maxAge)
	return sweep(ctx, stagingDir, logger, "stale", func(dir DirInfo) bool {
		return dir.ModTime.Before(cutoff)
	})
}

// CleanOrphaned removes job directories whose job id is not in active.
func CleanOrphaned(ctx context.Context, stagingDir string, active map[int64]struct{}, logger *slog.Logger) CleanStaleResult {
	return sweep(ctx, stagingDir, logger, "orphaned", func(dir DirInfo) bool {
		_, ok := active[dir.JobID]
		return !ok
	})
}

func sweep(ctx context.Context, stagingDir string, logger *slog.Logger, reason string, doomed func(DirInfo) bool) CleanStaleResult {
	if logger == nil {
		logger = logging.NewNop()
	}
	var result CleanStaleResult
	dirs, err := scan(stagingDir, false)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		return result
	}
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if !doomed(dir) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			logging.WarnWithContext(logger, "failed to remove staging directory", "staging_cleanup_failed",
				logging.String("path", dir.Path),
				logging.String("reason", reason),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		logger.Info("removed staging directory",
			logging.String("path", dir.Path),
			logging.String("reason", reason),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

// ListDirectories returns the job directories under stagingDir with their
// total size. A missing staging root lists as empty.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	return scan(stagingDir, true)
}

func scan(stagingDir string, sized bool) ([]DirInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(stagingDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dirs []DirInfo
	for _, entry := range entries {
		id, ok := JobIDFromDir(entry.Name())
		if !ok || !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dir := DirInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(stagingDir, entry.Name()),
			JobID:   id,
			ModTime: info.ModTime(),
		}
		if sized {
			dir.Size = treeSize(dir.Path)
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// treeSize sums regular file sizes under root, skipping unreadable entries.
func treeSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
