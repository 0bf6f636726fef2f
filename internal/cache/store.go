package cache

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// TierStore is one capacity-bounded key→entry map with an optional
// storage mirror. The size never exceeds the capacity: a full store evicts
// before it inserts a new key.
type TierStore struct {
	name     Tier
	capacity int
	ttl      time.Duration
	persist  persister
	logger   *slog.Logger

	mu    sync.RWMutex
	items map[string]*item
	seq   uint64

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
	promotions  atomic.Int64
}

// newTierStore creates a tier. persist may be nil for a memory-only tier.
func newTierStore(name Tier, cfg TierConfig, persist persister, logger *slog.Logger) *TierStore {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	return &TierStore{
		name:     name,
		capacity: cfg.Capacity,
		ttl:      cfg.DefaultTTL,
		persist:  persist,
		logger:   logger,
		items:    make(map[string]*item),
	}
}

// Name returns the tier name.
func (s *TierStore) Name() Tier { return s.name }

// Capacity returns the maximum number of entries.
func (s *TierStore) Capacity() int { return s.capacity }

// DefaultTTL returns the TTL applied when Set is given none.
func (s *TierStore) DefaultTTL() time.Duration { return s.ttl }

// Len returns the number of entries currently held, expired or not.
func (s *TierStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// restore loads persisted entries at construction. Expired entries are
// dropped; if more survive than the capacity allows, the lowest scored are
// evicted until the store fits.
func (s *TierStore) restore(now time.Time) {
	if s.persist == nil {
		return
	}
	loaded := s.persist.restore()
	if len(loaded) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Insertion order follows creation time so eviction ties stay stable.
	keys := make([]string, 0, len(loaded))
	for k := range loaded {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := loaded[keys[i]], loaded[keys[j]]
		if !a.createdAt.Equal(b.createdAt) {
			return a.createdAt.Before(b.createdAt)
		}
		return keys[i] < keys[j]
	})

	dropped := 0
	for _, k := range keys {
		it := loaded[k]
		if it.expired(now) {
			dropped++
			continue
		}
		s.seq++
		it.seq = s.seq
		s.items[k] = it
	}
	var evicted []string
	for len(s.items) > s.capacity {
		evicted = append(evicted, s.evictOneLocked(now))
	}

	s.logger.Debug("cache_tier_restored",
		slog.String("tier", string(s.name)),
		slog.Int("entries", len(s.items)),
		slog.Int("expired_dropped", dropped),
		slog.Int("evicted", len(evicted)))

	if dropped > 0 || len(evicted) > 0 {
		s.persist.sync(nil, evicted, s.items)
	}
}

// get returns the live entry for key and records the access. An expired
// entry found here is removed. On a memory miss, a write-through tier tries
// to restore the entry from storage.
func (s *TierStore) get(key string, now time.Time) (*item, bool) {
	s.mu.RLock()
	it, ok := s.items[key]
	if ok && !it.expired(now) {
		it.touch(now)
		s.mu.RUnlock()
		s.hits.Add(1)
		return it, true
	}
	s.mu.RUnlock()

	if ok {
		s.removeExpired(key, now)
	} else if it, ok := s.fetch(key, now); ok {
		it.touch(now)
		s.hits.Add(1)
		return it, true
	}

	s.misses.Add(1)
	return nil, false
}

// fetch restores a single entry from storage into memory.
func (s *TierStore) fetch(key string, now time.Time) (*item, bool) {
	if s.persist == nil {
		return nil, false
	}
	it, ok := s.persist.fetch(key)
	if !ok {
		return nil, false
	}
	if it.expired(now) {
		s.persist.sync(nil, []string{key}, nil)
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok && !existing.expired(now) {
		// Raced with a concurrent insert; the in-memory entry wins.
		return existing, true
	}
	var evicted []string
	if _, exists := s.items[key]; !exists && len(s.items) >= s.capacity {
		evicted = append(evicted, s.evictOneLocked(now))
	}
	s.seq++
	it.seq = s.seq
	s.items[key] = it
	if len(evicted) > 0 {
		s.persist.sync(nil, evicted, s.items)
	}
	return it, true
}

// removeExpired deletes key if it is still expired under the write lock.
func (s *TierStore) removeExpired(key string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok || !it.expired(now) {
		return
	}
	delete(s.items, key)
	s.expirations.Add(1)
	if s.persist != nil {
		s.persist.sync(nil, []string{key}, s.items)
	}
}

// insert stores it under key, evicting one entry first when the key is new
// and the tier is full. Overwriting an existing key keeps its insertion
// sequence for eviction tie-breaks.
func (s *TierStore) insert(key string, it *item, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	if existing, exists := s.items[key]; exists {
		// An overwrite keeps the key's place in insertion order.
		it.seq = existing.seq
	} else {
		if len(s.items) >= s.capacity {
			evicted = append(evicted, s.evictOneLocked(now))
		}
		s.seq++
		it.seq = s.seq
	}
	s.items[key] = it

	if s.persist != nil {
		s.persist.sync(map[string]*item{key: it}, evicted, s.items)
	}
}

// evictOneLocked removes the entry with the lowest eviction score. Ties go
// to the earliest inserted entry. The caller holds the write lock.
func (s *TierStore) evictOneLocked(now time.Time) string {
	var (
		victim    string
		victimIt  *item
		bestScore float64
	)
	for k, it := range s.items {
		score := it.evictionScore(now)
		if victimIt == nil || score < bestScore || (score == bestScore && it.seq < victimIt.seq) {
			victim, victimIt, bestScore = k, it, score
		}
	}
	if victimIt == nil {
		return ""
	}

	delete(s.items, victim)
	s.evictions.Add(1)
	s.logger.Debug("cache_evicted",
		slog.String("tier", string(s.name)),
		slog.String("key", victim),
		slog.Float64("score", bestScore),
		slog.Int("capacity", s.capacity))
	return victim
}

// remove deletes key and reports whether it was present.
func (s *TierStore) remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[key]
	delete(s.items, key)
	if s.persist != nil {
		// The mirror may hold the key even when memory does not.
		s.persist.sync(nil, []string{key}, s.items)
	}
	return ok
}

// clear drops every entry and its storage mirror, including mirrored
// entries that were never loaded into memory. Returns the number removed.
func (s *TierStore) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	n := len(s.items)
	s.items = make(map[string]*item)
	if s.persist != nil {
		n += s.persist.clear(keys)
	}
	return n
}

// sweep removes every entry with expiresAt ≤ now and writes the surviving
// set back to storage. Expired entries that exist only in storage are
// removed too.
func (s *TierStore) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for k, it := range s.items {
		if it.expired(now) {
			delete(s.items, k)
			removed = append(removed, k)
		}
	}
	n := len(removed)
	if s.persist != nil {
		s.persist.sync(nil, removed, s.items)
		n += s.persist.sweepStored(now, s.items)
	}
	s.expirations.Add(int64(n))
	return n
}

// keys returns the held keys in sorted order.
func (s *TierStore) keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// entry returns a snapshot of key without recording an access.
func (s *TierStore) entry(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[key]
	if !ok {
		return Entry{}, false
	}
	return it.snapshot(), true
}

func (s *TierStore) stats() TierStats {
	return TierStats{
		Tier:        s.name,
		Size:        s.Len(),
		Capacity:    s.capacity,
		DefaultTTL:  s.ttl,
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Evictions:   s.evictions.Load(),
		Expirations: s.expirations.Load(),
		Promotions:  s.promotions.Load(),
	}
}
