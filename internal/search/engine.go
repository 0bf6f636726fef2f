// Package search ranks catalog documents and configs against free-text
// queries using the inverted index, and memoizes results in the cache.
//
// Scoring per query word: +10 for every document holding the word as an
// exact token, +5 for every indexed token the word is a prefix of. A config
// (or a config-less document) whose lower-cased name contains the whole
// normalized query gets a further +5.
package search

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Aman-CERP/autoprice/internal/cache"
	"github.com/Aman-CERP/autoprice/internal/catalog"
	"github.com/Aman-CERP/autoprice/internal/index"
)

// Score weights.
const (
	ExactMatchScore  = 10
	PrefixMatchScore = 5
	SubstringBonus   = 5
)

// Defaults for Config.
const (
	DefaultMaxResults = 20
	DefaultMemoTTL    = 10 * time.Minute
	memoKeyPrefix     = "search:"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Result is one ranked hit. ConfigID is empty for a config-less document.
type Result struct {
	DocumentID  string  `json:"document_id"`
	ConfigID    string  `json:"config_id,omitempty"`
	DisplayText string  `json:"display_text"`
	Score       int     `json:"score"`
	Price       float64 `json:"price"`
}

// Config tunes the engine.
type Config struct {
	MaxResults int
	MemoTTL    time.Duration
	MemoTier   cache.Tier
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		MaxResults: DefaultMaxResults,
		MemoTTL:    DefaultMemoTTL,
		MemoTier:   cache.TierFast,
	}
}

// Engine is the SearchEngine.
type Engine struct {
	index  *index.Index
	cache  *cache.Manager
	config Config
	logger *slog.Logger

	queries  atomic.Int64
	memoHits atomic.Int64
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over idx. A nil cache disables memoization.
// Zero config fields take their defaults.
func NewEngine(idx *index.Index, cm *cache.Manager, cfg Config, opts ...EngineOption) (*Engine, error) {
	if idx == nil {
		return nil, fmt.Errorf("%w: index is required", ErrNilDependency)
	}
	def := DefaultConfig()
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.MemoTTL <= 0 {
		cfg.MemoTTL = def.MemoTTL
	}
	if cfg.MemoTier == "" {
		cfg.MemoTier = def.MemoTier
	}
	if _, err := cache.ParseTier(string(cfg.MemoTier), false); err != nil {
		return nil, err
	}

	e := &Engine{
		index:  idx,
		cache:  cm,
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Query ranks the catalog against text. An empty or whitespace-only query
// returns no results. Results are sorted by descending score; equal scores
// keep ingestion order, and configs keep their order within a document.
func (e *Engine) Query(text string) []Result {
	norm := index.Normalize(text)
	if norm == "" {
		return nil
	}
	e.queries.Add(1)

	snap := e.index.Snapshot()
	key := MemoKey(snap.Generation(), norm)
	if e.cache != nil {
		cached, ok, err := cache.GetTyped[[]Result](e.cache, key, e.config.MemoTier)
		if err != nil {
			e.logger.Warn("search_memo_decode_failed", slog.String("key", key), slog.String("error", err.Error()))
		} else if ok {
			e.memoHits.Add(1)
			return slices.Clone(cached)
		}
	}

	start := time.Now()
	results := e.rank(snap, norm)

	if e.cache != nil {
		e.cache.Set(key, slices.Clone(results),
			cache.WithTier(e.config.MemoTier),
			cache.WithTTL(e.config.MemoTTL))
	}

	e.logger.Debug("search_completed",
		slog.String("query", norm),
		slog.Uint64("generation", snap.Generation()),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))
	return results
}

// rank scores one snapshot. It never touches the cache.
func (e *Engine) rank(snap *index.Snapshot, norm string) []Result {
	scores := make(map[uint32]int)
	matched := roaring.New()
	credit := func(bm *roaring.Bitmap, points int) {
		if bm == nil {
			return
		}
		bm.Iterate(func(ord uint32) bool {
			scores[ord] += points
			return true
		})
		matched.Or(bm)
	}

	for _, word := range index.Words(norm) {
		credit(snap.Lookup(word), ExactMatchScore)
		for _, tok := range snap.PrefixTokens(word) {
			credit(snap.Lookup(tok), PrefixMatchScore)
		}
	}

	var results []Result
	it := matched.Iterator()
	for it.HasNext() {
		ord := it.Next()
		score := scores[ord]
		if score <= 0 {
			continue
		}
		doc := snap.DocumentAt(ord)
		results = append(results, expand(doc, score, norm)...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > e.config.MaxResults {
		results = results[:e.config.MaxResults]
	}
	return results
}

// expand turns one scored document into its results.
func expand(doc catalog.Document, score int, norm string) []Result {
	if len(doc.Configs) == 0 {
		r := catalog.Resolve(doc, nil)
		return []Result{{
			DocumentID:  doc.ID,
			DisplayText: r.DisplayText(),
			Score:       score + substringBonus(doc.Name, norm),
			Price:       r.Price,
		}}
	}

	out := make([]Result, 0, len(doc.Configs))
	for i := range doc.Configs {
		cfg := doc.Configs[i]
		r := catalog.Resolve(doc, &cfg)
		out = append(out, Result{
			DocumentID:  doc.ID,
			ConfigID:    cfg.ID,
			DisplayText: r.DisplayText(),
			Score:       score + substringBonus(cfg.Name, norm),
			Price:       r.Price,
		})
	}
	return out
}

// substringBonus matches against the normalized query, so case and extra
// whitespace in the caller's text do not forfeit the bonus.
func substringBonus(name, norm string) int {
	if strings.Contains(index.Normalize(name), norm) {
		return SubstringBonus
	}
	return 0
}

// MemoKey returns the cache key of a normalized query against one index
// generation. A new generation never serves results memoized for the old.
func MemoKey(generation uint64, norm string) string {
	return fmt.Sprintf("%sg%d:%s", memoKeyPrefix, generation, norm)
}

// Stats reports query counters.
type Stats struct {
	Queries  int64 `json:"queries"`
	MemoHits int64 `json:"memo_hits"`
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{Queries: e.queries.Load(), MemoHits: e.memoHits.Load()}
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.config
}
