package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/autoprice/internal/catalog"
)

// Mode names the active watching mechanism.
type Mode string

// Watching mechanisms.
const (
	ModeFsnotify Mode = "fsnotify"
	ModePolling  Mode = "polling"
)

// CatalogWatcher watches one catalog directory (not recursive) and calls
// its ChangeFunc with debounced batches of catalog file events.
type CatalogWatcher struct {
	dir       string
	opts      Options
	onChange  ChangeFunc
	debouncer *Debouncer
	fsw       *fsnotify.Watcher
	mode      Mode

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a watcher for dir. Start must be called to begin watching.
func New(dir string, onChange ChangeFunc, opts Options) (*CatalogWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("watcher: change callback is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	opts = opts.WithDefaults()
	return &CatalogWatcher{
		dir:       abs,
		opts:      opts,
		onChange:  onChange,
		debouncer: NewDebouncer(opts.DebounceWindow),
	}, nil
}

// Start begins watching in the background. The directory must exist.
// fsnotify is tried first; polling is used if it cannot be set up.
func (w *CatalogWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", w.dir)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.started = true

	w.mode = ModePolling
	if !w.opts.ForcePolling {
		if fsw, err := newFsnotify(w.dir); err == nil {
			w.fsw = fsw
			w.mode = ModeFsnotify
		} else {
			slog.Warn("fsnotify_unavailable_polling",
				slog.String("dir", w.dir),
				slog.String("error", err.Error()))
		}
	}

	w.wg.Add(2)
	go w.dispatch(ctx)
	if w.mode == ModeFsnotify {
		go w.runFsnotify(ctx)
	} else {
		go w.runPolling(ctx, w.scan())
	}

	slog.Info("catalog_watch_started",
		slog.String("dir", w.dir),
		slog.String("mode", string(w.mode)),
		slog.Duration("debounce", w.opts.DebounceWindow))
	return nil
}

func newFsnotify(dir string) (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return fsw, nil
}

// Mode reports the active mechanism. Empty before Start.
func (w *CatalogWatcher) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Dir returns the absolute watched directory.
func (w *CatalogWatcher) Dir() string {
	return w.dir
}

// Stop ends watching and waits for an in-flight callback to return.
// Safe to call multiple times and before Start.
func (w *CatalogWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		cancel := w.cancel
		fsw := w.fsw
		w.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if fsw != nil {
			err = fsw.Close()
		}
		w.debouncer.Stop()
		w.wg.Wait()
	})
	return err
}

// dispatch delivers debounced batches to the callback.
func (w *CatalogWatcher) dispatch(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			slog.Debug("catalog_change_batch", slog.Int("events", len(batch)))
			w.onChange(ctx, batch)
		}
	}
}

func (w *CatalogWatcher) runFsnotify(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if fe, ok := convert(ev); ok {
				w.debouncer.Add(fe)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("catalog_watch_error", slog.String("error", err.Error()))
		}
	}
}

// convert maps an fsnotify event on a catalog file to a FileEvent.
func convert(ev fsnotify.Event) (FileEvent, bool) {
	if !catalog.IsCatalogFile(ev.Name) {
		return FileEvent{}, false
	}
	fe := FileEvent{Path: ev.Name, Timestamp: time.Now()}
	switch {
	case ev.Has(fsnotify.Create):
		fe.Operation = OpCreate
	case ev.Has(fsnotify.Write):
		fe.Operation = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		fe.Operation = OpDelete
	default:
		return FileEvent{}, false
	}
	return fe, true
}

type fileState struct {
	modTime time.Time
	size    int64
}

// runPolling diffs directory scans against the baseline taken at Start.
func (w *CatalogWatcher) runPolling(ctx context.Context, prev map[string]fileState) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := w.scan()
			for _, fe := range diff(prev, next) {
				w.debouncer.Add(fe)
			}
			prev = next
		}
	}
}

// scan records the state of every catalog file in the directory.
func (w *CatalogWatcher) scan() map[string]fileState {
	state := make(map[string]fileState)
	files, err := catalog.ListFiles(w.dir)
	if err != nil {
		slog.Warn("catalog_poll_failed", slog.String("error", err.Error()))
		return state
	}
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		state[path] = fileState{modTime: info.ModTime(), size: info.Size()}
	}
	return state
}

// diff returns the events that turn prev into next.
func diff(prev, next map[string]fileState) []FileEvent {
	now := time.Now()
	var events []FileEvent
	for path, cur := range next {
		old, ok := prev[path]
		switch {
		case !ok:
			events = append(events, FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		case !old.modTime.Equal(cur.modTime) || old.size != cur.size:
			events = append(events, FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path := range prev {
		if _, ok := next[path]; !ok {
			events = append(events, FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}
	return events
}
