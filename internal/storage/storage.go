// Package storage provides the key-value media that the cache tiers and the
// selection history persist through. Every backend satisfies the same small
// contract: read a string by key, write a string under a key, remove a key.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrClosed is returned by backend operations after Close.
var ErrClosed = errors.New("storage backend is closed")

// Backend is the persistence contract consumed by the cache and history.
// Read reports ok=false for an absent key; that is not an error.
// List returns the stored keys starting with prefix, sorted.
type Backend interface {
	Read(key string) (value string, ok bool, err error)
	Write(key, value string) error
	Remove(key string) error
	List(prefix string) ([]string, error)
	Close() error
}

// Kind selects a backend implementation.
type Kind string

const (
	// KindMemory keeps data in process memory only (tests, session tier).
	KindMemory Kind = "memory"
	// KindFile writes one JSON file per key under a directory.
	KindFile Kind = "file"
	// KindSQLite stores keys in a single SQLite table (default durable backend).
	KindSQLite Kind = "sqlite"
	// KindBadger stores keys in a Badger LSM directory.
	KindBadger Kind = "badger"
)

// Kinds lists the valid backend names.
func Kinds() []Kind {
	return []Kind{KindMemory, KindFile, KindSQLite, KindBadger}
}

// Open creates a Backend of the given kind rooted at basePath.
// The path is adjusted per backend: ".db" for SQLite, a directory for file
// and Badger. An empty basePath yields an in-memory variant where the
// backend supports one.
func Open(kind Kind, basePath string) (Backend, error) {
	switch kind {
	case KindMemory:
		return NewMemoryBackend(), nil

	case KindSQLite, "":
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteBackend(path)

	case KindFile:
		if basePath == "" {
			return nil, fmt.Errorf("file backend requires a path")
		}
		return NewFileBackend(basePath + ".d")

	case KindBadger:
		var path string
		if basePath != "" {
			path = basePath + ".badger"
		}
		return NewBadgerBackend(path)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (valid options: memory, file, sqlite, badger)", kind)
	}
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
