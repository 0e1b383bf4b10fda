package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"audiopipe/internal/logging"
)

// PruneResult summarizes a retention pass.
type PruneResult struct {
	Removed []string
	Skipped []string
}

// Prune deletes job directories whose last activity is older than cutoff.
// Jobs whose lock is held by a running process are skipped. The activity time
// is the manifest modification time when one exists, otherwise the
// directory's own modification time.
func (r *Root) Prune(ctx context.Context, cutoff time.Time, logger *slog.Logger) (PruneResult, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var result PruneResult
	ids, err := r.JobIDs()
	if err != nil {
		return result, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		dir := filepath.Join(r.dir, id)
		activity, err := lastActivity(dir)
		if err != nil {
			logger.Debug("skip job without readable activity time", logging.String(logging.FieldJobID, id), logging.Error(err))
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if !activity.Before(cutoff) {
			continue
		}
		removed, err := removeIfIdle(dir)
		if err != nil {
			logging.WarnWithContext(logger, "job prune failed; directory remains", "job_prune_failed",
				logging.String(logging.FieldJobID, id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check output_dir ownership and permissions"),
				logging.String(logging.FieldImpact, "job outputs remain on disk"),
			)
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if !removed {
			logger.Info("job still running; prune skipped",
				logging.String(logging.FieldJobID, id),
				logging.String(logging.FieldEventType, "job_prune_skipped"),
			)
			result.Skipped = append(result.Skipped, id)
			continue
		}
		logger.Info("job pruned",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldEventType, "job_pruned"),
			logging.String("last_activity", activity.UTC().Format(time.RFC3339)),
		)
		result.Removed = append(result.Removed, id)
	}
	return result, nil
}

func lastActivity(dir string) (time.Time, error) {
	if info, err := os.Stat(filepath.Join(dir, "manifest.json")); err == nil {
		return info.ModTime(), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func removeIfIdle(dir string) (bool, error) {
	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", dir, err)
	}
	if !ok {
		return false, nil
	}
	defer func() { _ = lock.Unlock() }()
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("remove %s: %w", dir, err)
	}
	return true, nil
}
