package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendFactories lists every backend under the shared contract tests.
func backendFactories(t *testing.T) map[string]func() Backend {
	t.Helper()
	return map[string]func() Backend{
		"memory": func() Backend { return NewMemoryBackend() },
		"file": func() Backend {
			b, err := NewFileBackend(filepath.Join(t.TempDir(), "kv"))
			require.NoError(t, err)
			return b
		},
		"sqlite": func() Backend {
			b, err := NewSQLiteBackend("")
			require.NoError(t, err)
			return b
		},
		"sqlite_file": func() Backend {
			b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "kv.db"))
			require.NoError(t, err)
			return b
		},
		"badger": func() Backend {
			b, err := NewBadgerBackend("")
			require.NoError(t, err)
			return b
		},
	}
}

func TestBackend_Contract_ReadWriteRemove(t *testing.T) {
	for name, factory := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			// Given: an empty backend
			b := factory()
			defer func() { _ = b.Close() }()

			// Then: absent keys are not errors
			_, ok, err := b.Read("autoprice:cache:durable")
			require.NoError(t, err)
			assert.False(t, ok)

			// When: a value is written
			require.NoError(t, b.Write("autoprice:cache:durable", `{"a":1}`))

			// Then: it reads back verbatim
			v, ok, err := b.Read("autoprice:cache:durable")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"a":1}`, v)

			// When: overwritten
			require.NoError(t, b.Write("autoprice:cache:durable", `{"a":2}`))
			v, _, err = b.Read("autoprice:cache:durable")
			require.NoError(t, err)
			assert.Equal(t, `{"a":2}`, v)

			// When: removed (twice, second is a no-op)
			require.NoError(t, b.Remove("autoprice:cache:durable"))
			require.NoError(t, b.Remove("autoprice:cache:durable"))
			_, ok, err = b.Read("autoprice:cache:durable")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBackend_Contract_ListByPrefix(t *testing.T) {
	for name, factory := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			// Given: keys under two prefixes, one with LIKE wildcards
			b := factory()
			defer func() { _ = b.Close() }()
			require.NoError(t, b.Write("autoprice:cache:session:b", "2"))
			require.NoError(t, b.Write("autoprice:cache:session:a%_", "1"))
			require.NoError(t, b.Write("autoprice:cache:durable", "{}"))
			require.NoError(t, b.Write("autoprice:history", "[]"))

			// When: listing one prefix
			keys, err := b.List("autoprice:cache:session:")

			// Then: only that prefix comes back, sorted
			require.NoError(t, err)
			assert.Equal(t, []string{"autoprice:cache:session:a%_", "autoprice:cache:session:b"}, keys)

			// And: an empty prefix lists everything
			all, err := b.List("")
			require.NoError(t, err)
			assert.Len(t, all, 4)

			// And: a wildcard in the prefix is literal
			none, err := b.List("autoprice:cache:%")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestBackend_Contract_ClosedBackendRejectsOperations(t *testing.T) {
	for name, factory := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			b := factory()
			require.NoError(t, b.Close())

			assert.ErrorIs(t, b.Write("k", "v"), ErrClosed)
			_, _, err := b.Read("k")
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, b.Remove("k"), ErrClosed)
			_, err = b.List("")
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestFileBackend_PersistsAcrossInstances(t *testing.T) {
	// Given: a file backend with a stored value
	dir := filepath.Join(t.TempDir(), "kv")
	b1, err := NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, b1.Write("autoprice:history", `[{"brand":"BMW"}]`))
	require.NoError(t, b1.Close())

	// When: a new instance opens the same directory
	b2, err := NewFileBackend(dir)
	require.NoError(t, err)
	defer func() { _ = b2.Close() }()

	// Then: the value is still there and no temp files remain
	v, ok, err := b2.Read("autoprice:history")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"brand":"BMW"}]`, v)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestSQLiteBackend_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	b1, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	require.NoError(t, b1.Write("k", "v1"))
	require.NoError(t, b1.Close())

	b2, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	defer func() { _ = b2.Close() }()

	v, ok, err := b2.Read("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)
	assert.Equal(t, path, b2.Path())
}

func TestSQLiteBackend_CorruptFileIsRecreated(t *testing.T) {
	// Given: a file that is not a SQLite database
	path := filepath.Join(t.TempDir(), "store.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite"), 0o644))

	// When: opening it
	b, err := NewSQLiteBackend(path)

	// Then: a fresh, usable store is created
	require.NoError(t, err)
	defer func() { _ = b.Close() }()
	require.NoError(t, b.Write("k", "v"))
	v, ok, err := b.Read("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestSQLiteBackend_WorksOverCGODriver(t *testing.T) {
	// Given: a database opened with the mattn/go-sqlite3 driver
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	// When: wrapping it
	b, err := NewSQLiteBackendFromDB(db)
	require.NoError(t, err)

	// Then: the contract holds and Close leaves the caller's db open
	require.NoError(t, b.Write("k", "v"))
	v, ok, err := b.Read("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, b.Close())
	assert.NoError(t, db.Ping())
}

func TestNewSQLiteBackendFromDB_RequiresDB(t *testing.T) {
	_, err := NewSQLiteBackendFromDB(nil)
	assert.Error(t, err)
}

func TestBadgerBackend_PersistsAcrossInstances(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kv.badger")

	b1, err := NewBadgerBackend(dir)
	require.NoError(t, err)
	require.NoError(t, b1.Write("k", "v1"))
	require.NoError(t, b1.Close())

	b2, err := NewBadgerBackend(dir)
	require.NoError(t, err)
	defer func() { _ = b2.Close() }()

	v, ok, err := b2.Read("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestOpen_SelectsBackendByKind(t *testing.T) {
	base := filepath.Join(t.TempDir(), "store")

	tests := []struct {
		kind Kind
		want any
	}{
		{KindMemory, &MemoryBackend{}},
		{KindSQLite, &SQLiteBackend{}},
		{"", &SQLiteBackend{}},
		{KindFile, &FileBackend{}},
		{KindBadger, &BadgerBackend{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			b, err := Open(tt.kind, base+"-"+string(tt.kind))
			require.NoError(t, err)
			defer func() { _ = b.Close() }()
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open("redis", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}

func TestOpen_FileRequiresPath(t *testing.T) {
	_, err := Open(KindFile, "")
	assert.Error(t, err)
}

func TestMemoryBackend_Keys(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Write("b", "2"))
	require.NoError(t, b.Write("a", "1"))
	assert.Equal(t, []string{"a", "b"}, b.Keys())
}
