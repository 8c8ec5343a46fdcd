package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"shop-lifecycle/internal/logging"
)

// SnapshotInfo is a snapshot found on disk
type SnapshotInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// PruneResult reports what a retention run removed
type PruneResult struct {
	DeletedCount int      `json:"deleted_count"`
	DeletedNames []string `json:"deleted_names"`
	Kept         []string `json:"kept"`
	Errors       []string `json:"errors,omitempty"`
	DryRun       bool     `json:"dry_run"`
}

// RetentionPolicy keeps the newest N snapshots in a directory
type RetentionPolicy struct {
	matcher *regexp.Regexp
	logger  *logging.Logger
	remove  func(path string) error
	dryRun  bool
}

// NewRetentionPolicy creates a policy that only considers names produced by naming
func NewRetentionPolicy(naming Naming, logger *logging.Logger) *RetentionPolicy {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if naming.Prefix == "" {
		naming.Prefix = DefaultPrefix
	}
	return &RetentionPolicy{
		matcher: naming.Matcher(),
		logger:  logger,
		remove:  os.Remove,
	}
}

// WithDryRun makes Prune report candidates without deleting them
func (rp *RetentionPolicy) WithDryRun(dryRun bool) *RetentionPolicy {
	rp.dryRun = dryRun
	return rp
}

// List returns the snapshots in dir, newest first. Unrelated files and
// directories are ignored; a missing dir yields an empty list.
func (rp *RetentionPolicy) List(dir string) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, NewStorageError("failed to read backup directory", err).WithContext("dir", dir)
	}

	var snapshots []SnapshotInfo
	for _, entry := range entries {
		if entry.IsDir() || !rp.matcher.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		snapshots = append(snapshots, SnapshotInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		if !snapshots[i].ModTime.Equal(snapshots[j].ModTime) {
			return snapshots[i].ModTime.After(snapshots[j].ModTime)
		}
		return snapshots[i].Name > snapshots[j].Name
	})

	return snapshots, nil
}

// Prune deletes every snapshot beyond the newest keep. A failed delete is
// logged and recorded, and the remaining candidates are still processed.
func (rp *RetentionPolicy) Prune(ctx context.Context, dir string, keep int) (*PruneResult, error) {
	if keep < 1 {
		return nil, NewValidationError(fmt.Sprintf("retention window must be at least 1, got %d", keep), nil)
	}

	snapshots, err := rp.List(dir)
	if err != nil {
		return nil, err
	}

	result := &PruneResult{DryRun: rp.dryRun}

	for i, snap := range snapshots {
		if i < keep {
			result.Kept = append(result.Kept, snap.Name)
			continue
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		if rp.dryRun {
			result.DeletedCount++
			result.DeletedNames = append(result.DeletedNames, snap.Name)
			continue
		}

		if err := rp.remove(snap.Path); err != nil {
			msg := fmt.Sprintf("failed to delete %s: %v", snap.Name, err)
			result.Errors = append(result.Errors, msg)
			rp.logger.WithFields(map[string]interface{}{
				"snapshot": snap.Name,
				"error":    err.Error(),
			}).Warn("Failed to delete old snapshot")
			continue
		}

		result.DeletedCount++
		result.DeletedNames = append(result.DeletedNames, snap.Name)
		rp.logger.WithField("snapshot", snap.Name).Debug("Deleted old snapshot")
	}

	rp.logger.LogPrune(dir, keep, result.DeletedCount, len(result.Errors), rp.dryRun)

	return result, nil
}
