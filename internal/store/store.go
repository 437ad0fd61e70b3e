// Package store persists per-image flags (pinned, hidden, attempt_download, is_set)
// in a single JSON file keyed by absolute image path.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// SupportedExtensions are the image file extensions adopted by ScanAndReconcile.
var SupportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Store is the property store. Every call is a full load-modify-save cycle
// guarded by an exclusive flock on a sibling lock file, so concurrent CLI
// processes serialize instead of losing updates.
type Store struct {
	path   string
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for recovery warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a store backed by the JSON file at path.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns all records. A missing file is created empty; an unparseable
// file yields an empty result rather than an error.
func (s *Store) Load() (Records, error) {
	var records Records
	err := s.withLock(func() error {
		var err error
		records, _, err = s.load()
		return err
	})
	return records, err
}

// Update merges fields into the record for path, creating it with defaults
// when absent, and returns the stored result.
func (s *Store) Update(path string, fields Fields) (Record, error) {
	var rec Record
	err := s.modify(func(records Records) (bool, error) {
		existing, ok := records[path]
		if !ok {
			existing = DefaultRecord()
		}
		rec = existing.Merge(fields)
		records[path] = rec
		return true, nil
	})
	return rec, err
}

// Ensure creates a default record for path unless one exists. It reports
// whether a record was created.
func (s *Store) Ensure(path string) (bool, error) {
	var created bool
	err := s.modify(func(records Records) (bool, error) {
		if _, ok := records[path]; ok {
			return false, nil
		}
		records[path] = DefaultRecord()
		created = true
		return true, nil
	})
	return created, err
}

// MarkCurrent sets is_set on path and clears it on every other record.
func (s *Store) MarkCurrent(path string) error {
	return s.modify(func(records Records) (bool, error) {
		for p, rec := range records {
			if p != path && rec.IsSet {
				rec.IsSet = false
				records[p] = rec
				s.logger.Debug("cleared previous background", zap.String("path", p))
			}
		}
		rec, ok := records[path]
		if !ok {
			rec = DefaultRecord()
		}
		rec.IsSet = true
		records[path] = rec
		return true, nil
	})
}

// Current returns the path of the record marked is_set, if any.
func (s *Store) Current() (string, bool, error) {
	records, err := s.Load()
	if err != nil {
		return "", false, err
	}
	path, ok := records.Current()
	return path, ok, nil
}

// Forget removes the record for path. It reports whether a record existed.
func (s *Store) Forget(path string) (bool, error) {
	var existed bool
	err := s.modify(func(records Records) (bool, error) {
		_, existed = records[path]
		delete(records, path)
		return existed, nil
	})
	return existed, err
}

// Prune removes records whose file no longer exists and returns their paths.
func (s *Store) Prune() ([]string, error) {
	var removed []string
	err := s.modify(func(records Records) (bool, error) {
		for _, path := range records.Paths() {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				delete(records, path)
				removed = append(removed, path)
			}
		}
		return len(removed) > 0, nil
	})
	return removed, err
}

// ScanAndReconcile makes sure every image file directly inside dir has a
// record. Existing flags are kept and missing keys are back-filled with
// defaults. It returns the number of records created.
func (s *Store) ScanAndReconcile(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create image directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read image directory: %w", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}

	added := 0
	err = s.withLock(func() error {
		records, raw, err := s.load()
		if err != nil {
			return err
		}

		for _, entry := range entries {
			if entry.IsDir() || !IsImage(entry.Name()) {
				continue
			}
			path := filepath.Join(absDir, entry.Name())
			if _, ok := records[path]; !ok {
				records[path] = DefaultRecord()
				added++
			}
		}

		data, err := encode(records)
		if err != nil {
			return err
		}
		if added == 0 && bytes.Equal(raw, data) {
			return nil
		}
		return s.write(data)
	})
	return added, err
}

// modify runs fn on the current records under the lock and saves the result
// when fn reports a change.
func (s *Store) modify(fn func(Records) (bool, error)) error {
	return s.withLock(func() error {
		records, _, err := s.load()
		if err != nil {
			return err
		}
		changed, err := fn(records)
		if err != nil || !changed {
			return err
		}
		data, err := encode(records)
		if err != nil {
			return err
		}
		return s.write(data)
	})
}

// load must be called with the lock held. It returns the decoded records and
// the raw bytes read from disk.
func (s *Store) load() (Records, []byte, error) {
	if s.path == "" {
		return nil, nil, fmt.Errorf("state path not set")
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		empty := []byte("{}\n")
		if err := s.write(empty); err != nil {
			return nil, nil, err
		}
		return Records{}, empty, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read state file: %w", err)
	}

	records := Records{}
	if len(bytes.TrimSpace(data)) == 0 {
		return records, data, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("state file is corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return Records{}, data, nil
	}
	if records == nil {
		records = Records{}
	}
	return records, data, nil
}

// write replaces the state file atomically (temp file in the same directory, then rename).
func (s *Store) write(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (s *Store) withLock(fn func() error) error {
	if s.path == "" {
		return fmt.Errorf("state path not set")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	f, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer unlockFile(f)

	return fn()
}

func encode(records Records) ([]byte, error) {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return append(data, '\n'), nil
}
