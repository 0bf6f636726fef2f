package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

const lockFileName = ".autoprice.lock"

// FileBackend stores each key as its own file under a directory.
// Writes are atomic (temp file + rename) and serialized across processes
// with an exclusive file lock on the directory.
type FileBackend struct {
	dir   string
	flock *flock.Flock

	mu     sync.Mutex
	closed bool
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates a file backend rooted at dir, creating it if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileBackend{
		dir:   dir,
		flock: flock.New(filepath.Join(dir, lockFileName)),
	}, nil
}

// Dir returns the backing directory.
func (f *FileBackend) Dir() string {
	return f.dir
}

// pathFor maps a key to a file name. Keys such as "autoprice:cache:durable"
// contain separators that are not portable in file names.
func (f *FileBackend) pathFor(key string) string {
	return filepath.Join(f.dir, url.QueryEscape(key)+".json")
}

// Read returns the file contents stored for key.
func (f *FileBackend) Read(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", false, ErrClosed
	}

	data, err := os.ReadFile(f.pathFor(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), true, nil
}

// Write atomically replaces the file for key.
func (f *FileBackend) Write(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	unlock, err := f.lock()
	if err != nil {
		return err
	}
	defer unlock()

	path := f.pathFor(key)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Remove deletes the file for key.
func (f *FileBackend) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	unlock, err := f.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(f.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// List decodes the file names in the directory and returns the keys
// starting with prefix, sorted. Temp files and the lock file are skipped.
func (f *FileBackend) List(prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", f.dir, err)
	}
	var keys []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		key, err := url.QueryUnescape(name)
		if err != nil || !strings.HasPrefix(key, prefix) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases the backend. Files stay on disk.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// lock acquires the cross-process directory lock.
func (f *FileBackend) lock() (func(), error) {
	if err := f.flock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to acquire storage lock: %w", err)
	}
	return func() { _ = f.flock.Unlock() }, nil
}
