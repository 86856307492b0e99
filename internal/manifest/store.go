package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store reads and writes one manifest file.
type Store struct {
	path   string
	format Format
	mu     sync.Mutex

	// beforeRename runs after the temporary file is written and synced.
	// Tests use it to simulate a crash before the new file is visible.
	beforeRename func(tmp string) error
}

// NewStore returns a Store for the manifest at path. The format follows the
// file extension.
func NewStore(path string) *Store {
	return &Store{path: path, format: FormatFor(path)}
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the manifest. A missing file is ErrNotFound.
func (s *Store) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
	}
	if err != nil {
		return nil, ioError(s.path, err)
	}
	m, err := Unmarshal(data, s.format)
	if err != nil {
		return nil, corrupt(s.path, err)
	}
	return m, nil
}

// LoadOrNew reads the manifest, returning an empty one if the file does
// not exist.
func (s *Store) LoadOrNew() (*Manifest, error) {
	m, err := s.Load()
	if errors.Is(err, ErrNotFound) {
		return New(), nil
	}
	return m, err
}

// Save writes m. When the file already holds the same records it is left
// untouched, so a load followed by a save never rewrites the file.
func (s *Store) Save(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(m)
}

func (s *Store) save(m *Manifest) error {
	if current, err := s.Load(); err == nil && current.Equal(m) {
		return nil
	}
	data, err := Marshal(m, s.format)
	if err != nil {
		return ioError(s.path, err)
	}
	if err := s.writeAtomic(data); err != nil {
		return ioError(s.path, err)
	}
	return nil
}

// writeAtomic writes data to a temporary file in the manifest's directory
// and renames it over the manifest.
func (s *Store) writeAtomic(data []byte) error {
	return writeFileAtomic(s.path, data, s.beforeRename)
}

// WriteFileAtomic replaces path with data so readers see either the old or
// the new content, never a partial write. Missing parent directories are
// created.
func WriteFileAtomic(path string, data []byte) error {
	return writeFileAtomic(path, data, nil)
}

func writeFileAtomic(path string, data []byte, beforeRename func(tmp string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return err
	}
	if beforeRename != nil {
		if err := beforeRename(tmpPath); err != nil {
			cleanup()
			return err
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	return nil
}

// syncDir persists the rename by flushing the parent directory.
var syncDir = fsyncDir

// Update runs fn on the current manifest under the lock and saves the
// result. A missing manifest starts empty. If fn fails nothing is written.
func (s *Store) Update(ctx context.Context, fn func(*Manifest) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := acquireLock(ctx, s.path+".lock")
	if err != nil {
		return ioError(s.path, err)
	}
	defer lock.release()

	m, err := s.LoadOrNew()
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	return s.save(m)
}

// Upsert sets one record.
func (s *Store) Upsert(ctx context.Context, g Group, name string, rec Record) error {
	return s.Update(ctx, func(m *Manifest) error {
		m.Set(g, name, rec)
		return nil
	})
}

// Remove deletes one record. Removing a missing record is not an error.
func (s *Store) Remove(ctx context.Context, g Group, name string) error {
	return s.Update(ctx, func(m *Manifest) error {
		m.Delete(g, name)
		return nil
	})
}
