package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"shop-lifecycle/internal/logging"
)

// SnapshotRecord describes one written snapshot. It is immutable once returned.
type SnapshotRecord struct {
	ArtifactPath string    `json:"artifact_path"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// Name returns the artifact file name
func (r *SnapshotRecord) Name() string {
	return filepath.Base(r.ArtifactPath)
}

var timestampReplacer = strings.NewReplacer(":", "-", ".", "-")

// Naming is the snapshot file convention: prefix, a sortable UTC timestamp
// with filename-unsafe characters replaced, then the source extension.
type Naming struct {
	Prefix string
}

// FileName builds the snapshot name for a source extension and time
func (n Naming) FileName(createdAt time.Time, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	stamp := timestampReplacer.Replace(createdAt.UTC().Truncate(time.Second).Format(time.RFC3339))
	return n.Prefix + stamp + ext
}

// Matcher returns a pattern matching only names produced by FileName
func (n Naming) Matcher() *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(n.Prefix) +
		`\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}Z(\.[A-Za-z0-9]+)+$`)
}

// SnapshotStore copies the live database file into the backup directory
type SnapshotStore struct {
	naming Naming
	dir    string
	logger *logging.Logger
	now    func() time.Time
	copy   func(dst io.Writer, src io.Reader) (int64, error)
}

// NewSnapshotStore creates a store writing into dir. An empty dir resolves to
// a backups/ directory next to each source file.
func NewSnapshotStore(naming Naming, dir string, logger *logging.Logger) *SnapshotStore {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if naming.Prefix == "" {
		naming.Prefix = DefaultPrefix
	}
	return &SnapshotStore{
		naming: naming,
		dir:    dir,
		logger: logger,
		now:    time.Now,
		copy:   io.Copy,
	}
}

// WithClock overrides the time source used for snapshot names
func (s *SnapshotStore) WithClock(now func() time.Time) *SnapshotStore {
	s.now = now
	return s
}

// Dir returns the directory snapshots of sourcePath are written to
func (s *SnapshotStore) Dir(sourcePath string) string {
	if s.dir != "" {
		return s.dir
	}
	return filepath.Join(filepath.Dir(sourcePath), DefaultDirName)
}

// CreateSnapshot copies sourcePath byte for byte into a new timestamped file.
// A missing source yields ErrNothingToBackup. A copy whose size differs from
// the source is removed and reported as an integrity error.
func (s *SnapshotStore) CreateSnapshot(ctx context.Context, sourcePath string) (record *SnapshotRecord, err error) {
	start := time.Now()
	var artifact string
	var size int64
	defer func() {
		if err != nil && err != ErrNothingToBackup {
			s.logger.LogSnapshot(sourcePath, artifact, size, time.Since(start), err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(sourcePath)
	if os.IsNotExist(err) {
		s.logger.WithField("source", sourcePath).Info("Source database not found, nothing to back up")
		return nil, ErrNothingToBackup
	}
	if err != nil {
		return nil, NewStorageError("failed to stat source database", err).WithContext("source", sourcePath)
	}
	if info.IsDir() {
		return nil, NewValidationError(fmt.Sprintf("source %s is a directory", sourcePath), nil)
	}

	dir := s.Dir(sourcePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if os.IsPermission(err) {
			return nil, NewPermissionError("failed to create backup directory", err).WithContext("dir", dir)
		}
		return nil, NewStorageError("failed to create backup directory", err).WithContext("dir", dir)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return nil, NewStorageError("failed to open source database", err).WithContext("source", sourcePath)
	}
	defer src.Close()

	srcInfo, err := src.Stat()
	if err != nil {
		return nil, NewStorageError("failed to stat source database", err).WithContext("source", sourcePath)
	}
	expected := srcInfo.Size()

	createdAt := s.now().UTC().Truncate(time.Second)
	artifact = filepath.Join(dir, s.naming.FileName(createdAt, filepath.Ext(sourcePath)))

	dst, err := os.OpenFile(artifact, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, NewConflictError("snapshot already exists for this second", err).WithContext("artifact", artifact)
		}
		return nil, NewStorageError("failed to create snapshot file", err).WithContext("artifact", artifact)
	}

	size, err = s.copy(dst, src)
	if err == nil {
		err = dst.Sync()
	}
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(artifact)
		return nil, NewStorageError("failed to copy database file", err).WithContext("artifact", artifact)
	}

	dstInfo, err := os.Stat(artifact)
	if err != nil {
		os.Remove(artifact)
		return nil, NewStorageError("failed to stat snapshot file", err).WithContext("artifact", artifact)
	}
	size = dstInfo.Size()

	if size != expected {
		os.Remove(artifact)
		return nil, NewIntegrityError(
			fmt.Sprintf("snapshot size %d does not match source size %d", size, expected), nil).
			WithContext("artifact", artifact).
			WithContext("expected_bytes", expected).
			WithContext("actual_bytes", size)
	}

	record = &SnapshotRecord{
		ArtifactPath: artifact,
		SizeBytes:    size,
		CreatedAt:    createdAt,
	}
	s.logger.LogSnapshot(sourcePath, artifact, size, time.Since(start), nil)

	return record, nil
}
