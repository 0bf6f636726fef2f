package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCleanupInterval is how often the janitor sweeps expired entries.
const DefaultCleanupInterval = time.Minute

// Janitor runs Manager.Cleanup on a fixed interval as a low-priority
// background job. The sweep takes the same per-tier write locks as
// foreground mutations.
type Janitor struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger

	runs    atomic.Int64
	removed atomic.Int64

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopOnce sync.Once
}

// NewJanitor creates a janitor for m. A non-positive interval uses
// DefaultCleanupInterval.
func NewJanitor(m *Manager, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &Janitor{
		manager:  m,
		interval: interval,
		logger:   m.logger,
	}
}

// Start launches the sweep loop. It stops when ctx is cancelled or Stop is
// called. Calling Start twice has no effect.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return
	}
	j.started = true

	ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(1)
	go j.loop(ctx)

	j.logger.Debug("cache janitor started", slog.Duration("interval", j.interval))
}

func (j *Janitor) loop(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// RunOnce performs one sweep synchronously.
func (j *Janitor) RunOnce() int {
	n := j.manager.Cleanup()
	j.runs.Add(1)
	j.removed.Add(int64(n))
	return n
}

// Runs returns the number of sweeps performed.
func (j *Janitor) Runs() int64 {
	return j.runs.Load()
}

// Removed returns the total number of entries the janitor expired.
func (j *Janitor) Removed() int64 {
	return j.removed.Load()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		j.mu.Lock()
		cancel := j.cancel
		j.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		j.wg.Wait()
		j.logger.Debug("cache janitor stopped", slog.Int64("runs", j.runs.Load()))
	})
}
