// Package history keeps the most recently selected catalog entries.
//
// Items are denormalized snapshots: they stay valid after the index is
// rebuilt, and FindMatch recovers the live Document and Config for one
// when the catalog still carries it.
package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/autoprice/internal/catalog"
	apperrors "github.com/Aman-CERP/autoprice/internal/errors"
	"github.com/Aman-CERP/autoprice/internal/storage"
)

const (
	// DefaultLimit is the number of items kept.
	DefaultLimit = 10
	// StorageKey is where the list is persisted.
	StorageKey = "autoprice:history"
)

// Item is one history entry, newest first in List.
type Item struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id,omitempty"`
	ConfigID   string         `json:"config_id,omitempty"`
	Brand      string         `json:"brand"`
	Name       string         `json:"name"`
	Variant    string         `json:"variant,omitempty"`
	Price      float64        `json:"price"`
	Fields     map[string]any `json:"fields,omitempty"`
	InsertedAt time.Time      `json:"inserted_at"`
}

// Snapshot builds an Item from a document and an optional config.
func Snapshot(doc catalog.Document, cfg *catalog.Config) Item {
	r := catalog.Resolve(doc, cfg)
	return Item{
		DocumentID: r.DocumentID,
		ConfigID:   r.ConfigID,
		Brand:      r.Brand,
		Name:       r.Name,
		Variant:    r.Variant,
		Price:      r.Price,
		Fields:     r.Specs,
	}
}

// DocumentSource supplies the live catalog. *index.Index satisfies it.
type DocumentSource interface {
	Documents() []catalog.Document
}

// Store is the HistoryStore. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	items   []Item
	backend storage.Backend
	source  DocumentSource
	limit   int
	clock   func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLimit overrides DefaultLimit.
func WithLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock sets the time source for InsertedAt.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSource sets the live catalog consulted by FindMatch.
func WithSource(src DocumentSource) Option {
	return func(s *Store) { s.source = src }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New opens the history persisted in backend. A nil backend keeps history
// in memory only. An unreadable list is discarded.
func New(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		limit:   DefaultLimit,
		clock:   time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s
}

func (s *Store) load() {
	if s.backend == nil {
		return
	}
	raw, ok, err := s.backend.Read(StorageKey)
	if err != nil {
		s.logger.Warn("history_read_failed", slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}

	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		appErr := apperrors.New(apperrors.ErrCodeStorageCorrupt, "history list is not valid JSON, discarding", err)
		s.logger.LogAttrs(context.Background(), slog.LevelWarn, "history_discarded", apperrors.LogAttrs(appErr)...)
		_ = s.backend.Remove(StorageKey)
		return
	}
	if len(items) > s.limit {
		items = items[:s.limit]
	}
	s.items = items
}

// Add records item as the newest entry. An existing entry with the same
// brand and name is removed first, and the list is trimmed to the limit.
// A missing ID is generated; InsertedAt is always set to now.
func (s *Store) Add(item Item) Item {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.InsertedAt = s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Item, 0, s.limit)
	next = append(next, item)
	for _, existing := range s.items {
		if existing.Brand == item.Brand && existing.Name == item.Name {
			continue
		}
		if len(next) == s.limit {
			break
		}
		next = append(next, existing)
	}
	s.items = next
	s.persistLocked()

	s.logger.Debug("history_added",
		slog.String("brand", item.Brand),
		slog.String("name", item.Name),
		slog.Int("size", len(s.items)))
	return item
}

// List returns the items, newest first.
func (s *Store) List() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear removes every item and the persisted list.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	if s.backend == nil {
		return
	}
	if err := s.backend.Remove(StorageKey); err != nil {
		s.logger.Warn("history_write_failed", slog.String("error", err.Error()))
	}
}

// persistLocked writes the list. Failures are logged and the in-memory
// list stands.
func (s *Store) persistLocked() {
	if s.backend == nil {
		return
	}
	data, err := json.Marshal(s.items)
	if err == nil {
		err = s.backend.Write(StorageKey, string(data))
	}
	if err != nil {
		appErr := apperrors.New(apperrors.ErrCodeStorageWrite, "failed to persist history", err)
		s.logger.LogAttrs(context.Background(), slog.LevelWarn, "history_write_failed", apperrors.LogAttrs(appErr)...)
	}
}

// Match is the live catalog entry behind a history item. Config is nil
// when the document has no configs.
type Match struct {
	Document catalog.Document
	Config   *catalog.Config
}

// Resolved applies the matched config to the document.
func (m Match) Resolved() catalog.Resolved {
	return catalog.Resolve(m.Document, m.Config)
}

// FindMatch looks for a live document with the given brand and name and a
// config whose resolved price equals price. A document without configs
// matches on its own price. Brand and name compare case-insensitively.
func (s *Store) FindMatch(brand, name string, price float64) (Match, bool) {
	if s.source == nil {
		return Match{}, false
	}
	for _, doc := range s.source.Documents() {
		if !strings.EqualFold(doc.Brand, brand) || !strings.EqualFold(doc.Name, name) {
			continue
		}
		if len(doc.Configs) == 0 {
			if doc.Price == price {
				return Match{Document: doc}, true
			}
			continue
		}
		for i := range doc.Configs {
			cfg := doc.Configs[i]
			if catalog.Resolve(doc, &cfg).Price == price {
				return Match{Document: doc, Config: &cfg}, true
			}
		}
	}
	return Match{}, false
}

// FindItem is FindMatch for a stored item.
func (s *Store) FindItem(item Item) (Match, bool) {
	return s.FindMatch(item.Brand, item.Name, item.Price)
}
