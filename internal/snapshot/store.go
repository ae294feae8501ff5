package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-json"
	"github.com/gofrs/flock"

	"imagearchive/internal/catalog"
	"imagearchive/internal/logging"
)

const (
	// Suffix ends every snapshot file name.
	Suffix     = "-catalog.json"
	timeLayout = "2006-01-02-150405"
	lockName   = ".catalog.lock"
	// maxSameSecond caps the ".NNN" disambiguation suffix.
	maxSameSecond = 1000
	lockRetry     = 50 * time.Millisecond
)

// ErrNotFound reports that the output directory holds no snapshot.
var ErrNotFound = errors.New("no catalog snapshot found")

var snapshotName = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-\d{6}(\.\d{3})?` + regexp.QuoteMeta(Suffix) + `$`)

// Info describes a snapshot on disk.
type Info struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Store reads and writes snapshots in one directory.
type Store struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "snapshot"),
	}
}

// Dir returns the directory the store manages.
func (s *Store) Dir() string { return s.dir }

// Write serializes records to a new snapshot and returns its path. Concurrent
// writers sharing the directory are serialized through a lock file.
func (s *Store) Write(ctx context.Context, records []catalog.Record) (string, error) {
	if records == nil {
		records = []catalog.Record{}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(s.dir, lockName))
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return "", fmt.Errorf("acquire snapshot lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("acquire snapshot lock: %s is busy", s.dir)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(s.dir, ".catalog-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return "", fmt.Errorf("chmod temp file: %w", err)
	}

	base := s.now().UTC().Format(timeLayout)
	for seq := 0; seq < maxSameSecond; seq++ {
		name := base + Suffix
		if seq > 0 {
			name = fmt.Sprintf("%s.%03d%s", base, seq, Suffix)
		}
		target := filepath.Join(s.dir, name)
		// Link fails instead of replacing an existing snapshot.
		err := os.Link(tmpPath, target)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("publish snapshot: %w", err)
		}
		s.logger.Info("catalog snapshot written",
			logging.String(logging.FieldPath, target),
			logging.Int("records", len(records)))
		return target, nil
	}
	return "", fmt.Errorf("publish snapshot: %d snapshots already written at %s", maxSameSecond, base)
}

// List returns the snapshots in the directory, oldest first.
func (s *Store) List() ([]Info, error) {
	matches, err := doublestar.Glob(os.DirFS(s.dir), "*"+Suffix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sort.Strings(matches)

	infos := make([]Info, 0, len(matches))
	for _, name := range matches {
		if !snapshotName.MatchString(name) {
			continue
		}
		path := filepath.Join(s.dir, name)
		stat, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat snapshot: %w", err)
		}
		if !stat.Mode().IsRegular() {
			continue
		}
		infos = append(infos, Info{Name: name, Path: path, Size: stat.Size(), ModTime: stat.ModTime()})
	}
	return infos, nil
}

// Latest describes the newest snapshot without reading it.
func (s *Store) Latest() (Info, error) {
	infos, err := s.List()
	if err != nil {
		return Info{}, err
	}
	if len(infos) == 0 {
		return Info{}, ErrNotFound
	}
	return infos[len(infos)-1], nil
}

// ReadLatest decodes the newest snapshot.
func (s *Store) ReadLatest() ([]catalog.Record, Info, error) {
	info, err := s.Latest()
	if err != nil {
		return nil, Info{}, err
	}
	records, err := Read(info.Path)
	if err != nil {
		return nil, Info{}, err
	}
	return records, info, nil
}

// Read decodes the snapshot at path.
func Read(path string) ([]catalog.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var records []catalog.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", filepath.Base(path), err)
	}
	if records == nil {
		records = []catalog.Record{}
	}
	return records, nil
}
