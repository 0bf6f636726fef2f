package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects batches delivered to a ChangeFunc.
type recorder struct {
	mu      sync.Mutex
	batches [][]FileEvent
}

func (r *recorder) onChange(_ context.Context, batch []FileEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, b := range r.batches {
		for _, ev := range b {
			out = append(out, filepath.Base(ev.Path))
		}
	}
	return out
}

func TestCatalogWatcher_ReloadsOnCatalogWrite(t *testing.T) {
	// Given: a watcher on an empty catalog directory
	dir := t.TempDir()
	rec := &recorder{}
	w, err := New(dir, rec.onChange, Options{DebounceWindow: 30 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	// When: a catalog file and an unrelated file are written
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bmw.json"), []byte(`[]`), 0o644))

	// Then: only the catalog file is reported
	require.Eventually(t, func() bool {
		return len(rec.paths()) > 0
	}, 3*time.Second, 10*time.Millisecond)
	assert.NotContains(t, rec.paths(), "notes.txt")
	assert.Contains(t, rec.paths(), "bmw.json")
}

func TestCatalogWatcher_PollingFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audi.json"), []byte(`[]`), 0o644))
	rec := &recorder{}
	w, err := New(dir, rec.onChange, Options{
		DebounceWindow: 10 * time.Millisecond,
		PollInterval:   20 * time.Millisecond,
		ForcePolling:   true,
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()
	assert.Equal(t, ModePolling, w.Mode())

	require.NoError(t, os.Remove(filepath.Join(dir, "audi.json")))

	require.Eventually(t, func() bool {
		return len(rec.paths()) > 0
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"audi.json"}, rec.paths())
}

func TestCatalogWatcher_StartErrors(t *testing.T) {
	_, err := New(t.TempDir(), nil, DefaultOptions())
	assert.Error(t, err)

	w, err := New(filepath.Join(t.TempDir(), "missing"), func(context.Context, []FileEvent) {}, DefaultOptions())
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
}

func TestCatalogWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), func(context.Context, []FileEvent) {}, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name   string
		ev     fsnotify.Event
		wantOp Operation
		wantOK bool
	}{
		{"create", fsnotify.Event{Name: "/c/a.json", Op: fsnotify.Create}, OpCreate, true},
		{"write", fsnotify.Event{Name: "/c/a.json", Op: fsnotify.Write}, OpModify, true},
		{"remove", fsnotify.Event{Name: "/c/a.json", Op: fsnotify.Remove}, OpDelete, true},
		{"rename away", fsnotify.Event{Name: "/c/a.json", Op: fsnotify.Rename}, OpDelete, true},
		{"chmod", fsnotify.Event{Name: "/c/a.json", Op: fsnotify.Chmod}, 0, false},
		{"temp file", fsnotify.Event{Name: "/c/a.json.tmp", Op: fsnotify.Create}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe, ok := convert(tt.ev)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantOp, fe.Operation)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	t0 := time.Unix(100, 0)
	prev := map[string]fileState{
		"/c/same.json":    {modTime: t0, size: 1},
		"/c/changed.json": {modTime: t0, size: 1},
		"/c/gone.json":    {modTime: t0, size: 1},
	}
	next := map[string]fileState{
		"/c/same.json":    {modTime: t0, size: 1},
		"/c/changed.json": {modTime: t0, size: 2},
		"/c/new.json":     {modTime: t0, size: 1},
	}

	ops := map[string]Operation{}
	for _, ev := range diff(prev, next) {
		ops[ev.Path] = ev.Operation
	}

	assert.Equal(t, map[string]Operation{
		"/c/changed.json": OpModify,
		"/c/new.json":     OpCreate,
		"/c/gone.json":    OpDelete,
	}, ops)
}
