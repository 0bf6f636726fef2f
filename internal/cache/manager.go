package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/autoprice/internal/storage"
)

// DefaultPriority is the priority recorded when Set is given none.
const DefaultPriority = 1

// Manager owns the fast, session and durable tiers.
type Manager struct {
	tiers  map[Tier]*TierStore
	clock  func() time.Time
	logger *slog.Logger

	// Counted once per Get, whichever tiers the lookup walked.
	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	configs map[Tier]TierConfig
	clock   func() time.Time
	logger  *slog.Logger
	durable storage.Backend
	session storage.Backend
}

// WithClock sets the time source. Tests use it to move time forward.
func WithClock(clock func() time.Time) Option {
	return func(o *managerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger used for eviction and storage events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *managerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTierConfig overrides the capacity and default TTL of one tier.
// Zero fields keep the default.
func WithTierConfig(t Tier, cfg TierConfig) Option {
	return func(o *managerOptions) {
		cur := o.configs[t]
		if cfg.Capacity > 0 {
			cur.Capacity = cfg.Capacity
		}
		if cfg.DefaultTTL > 0 {
			cur.DefaultTTL = cfg.DefaultTTL
		}
		o.configs[t] = cur
	}
}

// WithDurableBackend mirrors the durable tier into b as one blob.
func WithDurableBackend(b storage.Backend) Option {
	return func(o *managerOptions) { o.durable = b }
}

// WithSessionBackend mirrors the session tier into b, one key per entry.
func WithSessionBackend(b storage.Backend) Option {
	return func(o *managerOptions) { o.session = b }
}

// NewManager creates the three tiers and loads the durable tier from its
// backend, discarding entries that expired while the process was down.
func NewManager(opts ...Option) *Manager {
	o := &managerOptions{
		configs: DefaultTierConfigs(),
		clock:   time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	m := &Manager{
		tiers:  make(map[Tier]*TierStore, len(tierOrder)),
		clock:  o.clock,
		logger: o.logger,
	}

	m.tiers[TierFast] = newTierStore(TierFast, o.configs[TierFast], nil, o.logger)

	var sessionPersist persister
	if o.session != nil {
		sessionPersist = newKeyedPersister(o.session, SessionKeyPrefix, o.logger)
	}
	m.tiers[TierSession] = newTierStore(TierSession, o.configs[TierSession], sessionPersist, o.logger)

	var durablePersist persister
	if o.durable != nil {
		durablePersist = newBlobPersister(o.durable, DurableStorageKey, o.logger)
	}
	m.tiers[TierDurable] = newTierStore(TierDurable, o.configs[TierDurable], durablePersist, o.logger)
	m.tiers[TierDurable].restore(m.clock())

	return m
}

// tier returns the store for t. An unknown tier is a programming error.
func (m *Manager) tier(t Tier) *TierStore {
	s, ok := m.tiers[t]
	if !ok {
		panic(fmt.Sprintf("cache: invalid tier %q (want fast, session or durable)", t))
	}
	return s
}

// Tier returns the store for t for inspection. Panics on an unknown tier.
func (m *Manager) Tier(t Tier) *TierStore {
	return m.tier(t)
}

// SetOption configures one Set call.
type SetOption func(*setOptions)

type setOptions struct {
	tier     Tier
	ttl      time.Duration
	priority int
}

// WithTier selects the target tier (default fast).
func WithTier(t Tier) SetOption {
	return func(o *setOptions) { o.tier = t }
}

// WithTTL sets the entry TTL (default: the tier's TTL).
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = ttl }
}

// WithPriority records a priority on the entry (default 1).
func WithPriority(p int) SetOption {
	return func(o *setOptions) { o.priority = p }
}

// Set inserts or overwrites key. When the tier is full and key is new, one
// entry is evicted first. Storage failures are logged, never returned.
func (m *Manager) Set(key string, value any, opts ...SetOption) {
	o := setOptions{tier: TierFast, priority: DefaultPriority}
	for _, opt := range opts {
		opt(&o)
	}
	s := m.tier(o.tier)
	if o.ttl <= 0 {
		o.ttl = s.ttl
	}

	now := m.clock()
	s.insert(key, newItem(value, now, o.ttl, o.priority), now)
}

// Get looks key up in hint and then in every lower tier. A hit below hint
// is promoted into hint with its remaining TTL.
func (m *Manager) Get(key string, hint Tier) (any, bool) {
	target := m.tier(hint)
	now := m.clock()

	for _, t := range chainFrom(hint) {
		it, ok := m.tiers[t].get(key, now)
		if !ok {
			continue
		}
		if t != hint {
			m.promote(key, it, target, now)
		}
		m.hits.Add(1)
		return it.value, true
	}
	m.misses.Add(1)
	return nil, false
}

// promote copies a lower-tier hit into target, keeping the remaining TTL and
// priority. The source entry stays where it was.
func (m *Manager) promote(key string, it *item, target *TierStore, now time.Time) {
	remaining := it.remaining(now)
	if remaining <= 0 {
		return
	}
	target.insert(key, newItem(it.value, now, remaining, it.priority), now)
	target.promotions.Add(1)
	m.logger.Debug("cache_promoted",
		slog.String("key", key),
		slog.String("tier", string(target.name)),
		slog.Duration("remaining_ttl", remaining))
}

// Delete removes key from one tier or, with TierAll, from every tier, along
// with its storage mirror. It reports whether any tier held the key.
func (m *Manager) Delete(key string, t Tier) bool {
	if t == TierAll {
		removed := false
		for _, tt := range tierOrder {
			if m.tiers[tt].remove(key) {
				removed = true
			}
		}
		return removed
	}
	return m.tier(t).remove(key)
}

// Clear empties one tier or, with TierAll, every tier.
func (m *Manager) Clear(t Tier) int {
	if t == TierAll {
		n := 0
		for _, tt := range tierOrder {
			n += m.tiers[tt].clear()
		}
		m.logger.Info("cache_cleared", slog.String("tier", string(t)), slog.Int("entries", n))
		return n
	}
	n := m.tier(t).clear()
	m.logger.Info("cache_cleared", slog.String("tier", string(t)), slog.Int("entries", n))
	return n
}

// Cleanup sweeps every tier, removing entries whose expiry has passed, and
// writes the surviving durable set back. Returns the number removed.
func (m *Manager) Cleanup() int {
	now := m.clock()
	total := 0
	for _, t := range tierOrder {
		total += m.tiers[t].sweep(now)
	}
	if total > 0 {
		m.logger.Debug("cache_cleanup", slog.Int("expired", total))
	}
	return total
}

// Len returns the number of entries held by tier t.
func (m *Manager) Len(t Tier) int {
	return m.tier(t).Len()
}

// Keys returns the sorted keys of tier t.
func (m *Manager) Keys(t Tier) []string {
	return m.tier(t).keys()
}

// Entry returns a snapshot of key in tier t without counting an access.
func (m *Manager) Entry(t Tier, key string) (Entry, bool) {
	return m.tier(t).entry(key)
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.clock()
}

// GetTyped looks key up like Get and converts the value to T. Values
// restored from storage are held as raw JSON and are decoded here.
func GetTyped[T any](m *Manager, key string, hint Tier) (T, bool, error) {
	var zero T
	v, ok := m.Get(key, hint)
	if !ok {
		return zero, false, nil
	}
	out, err := convert[T](v)
	if err != nil {
		return zero, false, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return out, true, nil
}

func convert[T any](v any) (T, error) {
	if typed, ok := v.(T); ok {
		return typed, nil
	}

	var out T
	raw, ok := v.(json.RawMessage)
	if !ok {
		data, err := json.Marshal(v)
		if err != nil {
			return out, err
		}
		raw = data
	}
	err := json.Unmarshal(raw, &out)
	return out, err
}
