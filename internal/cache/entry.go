package cache

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Entry is the serialized and inspectable form of a cache entry.
// Timestamps are epoch milliseconds.
type Entry struct {
	Value        any   `json:"value"`
	CreatedAt    int64 `json:"createdAt"`
	ExpiresAt    int64 `json:"expiresAt"`
	Priority     int   `json:"priority"`
	AccessCount  int64 `json:"accessCount"`
	LastAccessed int64 `json:"lastAccessed"`
}

// storedEntry is the decode target for persisted entries. Values stay raw
// until a typed accessor asks for them.
type storedEntry struct {
	Value        json.RawMessage `json:"value"`
	CreatedAt    int64           `json:"createdAt"`
	ExpiresAt    int64           `json:"expiresAt"`
	Priority     int             `json:"priority"`
	AccessCount  int64           `json:"accessCount"`
	LastAccessed int64           `json:"lastAccessed"`
}

// item is the in-memory entry owned by one TierStore. Access metadata is
// atomic so lookups can run under the shared lock.
type item struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
	priority  int
	seq       uint64

	accessCount  atomic.Int64
	lastAccessed atomic.Int64 // unix nanoseconds
}

func newItem(value any, now time.Time, ttl time.Duration, priority int) *item {
	it := &item{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
		priority:  priority,
	}
	it.lastAccessed.Store(now.UnixNano())
	return it
}

// itemFromStored rebuilds an item from its persisted form.
func itemFromStored(se storedEntry) *item {
	it := &item{
		value:     se.Value,
		createdAt: time.UnixMilli(se.CreatedAt),
		expiresAt: time.UnixMilli(se.ExpiresAt),
		priority:  se.Priority,
	}
	it.accessCount.Store(se.AccessCount)
	it.lastAccessed.Store(time.UnixMilli(se.LastAccessed).UnixNano())
	return it
}

func (it *item) expired(now time.Time) bool {
	return !it.expiresAt.After(now)
}

func (it *item) touch(now time.Time) {
	it.accessCount.Add(1)
	it.lastAccessed.Store(now.UnixNano())
}

// remaining returns the TTL left at now.
func (it *item) remaining(now time.Time) time.Duration {
	return it.expiresAt.Sub(now)
}

// evictionScore combines access count and idle time in milliseconds with
// fixed weights. The two terms are in different units; see DESIGN.md.
func (it *item) evictionScore(now time.Time) float64 {
	idleMs := float64(now.UnixNano()-it.lastAccessed.Load()) / float64(time.Millisecond)
	return float64(it.accessCount.Load())*0.3 + idleMs*0.7
}

func (it *item) snapshot() Entry {
	return Entry{
		Value:        it.value,
		CreatedAt:    it.createdAt.UnixMilli(),
		ExpiresAt:    it.expiresAt.UnixMilli(),
		Priority:     it.priority,
		AccessCount:  it.accessCount.Load(),
		LastAccessed: time.Unix(0, it.lastAccessed.Load()).UnixMilli(),
	}
}
