// Package index maintains an inverted index over catalog documents.
//
// Each Ingest builds a complete generation off to the side and publishes it
// with one atomic pointer swap, so readers holding a Snapshot always see
// either the old or the new index in full.
package index

import (
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/autoprice/internal/catalog"
)

// DefaultPrefixCacheSize bounds the memoized prefix expansions per generation.
const DefaultPrefixCacheSize = 1024

// Index is the SearchIndex. It is safe for concurrent use.
type Index struct {
	current         atomic.Pointer[Snapshot]
	nextGen         atomic.Uint64
	prefixCacheSize int
	logger          *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithPrefixCacheSize sets the per-generation prefix memo size.
func WithPrefixCacheSize(n int) Option {
	return func(idx *Index) {
		if n > 0 {
			idx.prefixCacheSize = n
		}
	}
}

// WithLogger sets the logger used for ingest events.
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// New returns an empty index at generation 0.
func New(opts ...Option) *Index {
	idx := &Index{
		prefixCacheSize: DefaultPrefixCacheSize,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.current.Store(idx.build(0, nil, IngestStats{}))
	return idx
}

// IngestStats summarizes one Ingest call.
type IngestStats struct {
	Generation     uint64 `json:"generation"`
	Documents      int    `json:"documents"`
	Tokens         int    `json:"tokens"`
	Skipped        int    `json:"skipped"`
	Duplicates     int    `json:"duplicates"`
	DroppedConfigs int    `json:"dropped_configs"`
	Fingerprint    string `json:"fingerprint"`
}

// Ingest replaces the whole index with docs. Documents without an id, name
// or brand are skipped and logged, as are repeated ids. Configs without a
// name are dropped from their document.
func (idx *Index) Ingest(docs []catalog.Document) IngestStats {
	stats := IngestStats{Fingerprint: catalog.Fingerprint(docs)}

	kept := make([]catalog.Document, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		norm, dropped, err := catalog.Normalize(d)
		if err != nil {
			stats.Skipped++
			idx.logger.Warn("malformed_document_skipped",
				slog.Int("position", i),
				slog.String("id", d.ID),
				slog.String("error", err.Error()))
			continue
		}
		if _, dup := seen[norm.ID]; dup {
			stats.Duplicates++
			idx.logger.Warn("duplicate_document_skipped", slog.String("id", norm.ID))
			continue
		}
		seen[norm.ID] = struct{}{}
		stats.DroppedConfigs += dropped
		kept = append(kept, norm)
	}

	stats.Generation = idx.nextGen.Add(1)
	snap := idx.build(stats.Generation, kept, stats)
	stats.Documents = len(snap.docs)
	stats.Tokens = len(snap.tokens)
	snap.ingest = stats

	idx.current.Store(snap)

	idx.logger.Info("index_ingested",
		slog.Uint64("generation", stats.Generation),
		slog.Int("documents", stats.Documents),
		slog.Int("tokens", stats.Tokens),
		slog.Int("skipped", stats.Skipped))
	return stats
}

// build creates a generation from already normalized documents.
func (idx *Index) build(gen uint64, docs []catalog.Document, stats IngestStats) *Snapshot {
	postings := make(map[string]*roaring.Bitmap)
	add := func(tok string, ord uint32) {
		bm, ok := postings[tok]
		if !ok {
			bm = roaring.New()
			postings[tok] = bm
		}
		bm.Add(ord)
	}

	byID := make(map[string]uint32, len(docs))
	for i, d := range docs {
		ord := uint32(i)
		byID[d.ID] = ord
		for _, tok := range Tokenize(d.Name) {
			add(tok, ord)
		}
		for _, c := range d.Configs {
			for _, tok := range Tokenize(c.Name) {
				add(tok, ord)
			}
		}
		if tok := BrandToken(d.Brand); tok != "" {
			add(tok, ord)
		}
	}

	tokens := make([]string, 0, len(postings))
	for tok, bm := range postings {
		bm.RunOptimize()
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	prefixes, _ := lru.New[string, []string](idx.prefixCacheSize)
	return &Snapshot{
		gen:      gen,
		docs:     docs,
		byID:     byID,
		postings: postings,
		tokens:   tokens,
		prefixes: prefixes,
		ingest:   stats,
	}
}

// Snapshot returns the current generation. It never changes once returned.
func (idx *Index) Snapshot() *Snapshot {
	return idx.current.Load()
}

// Generation returns the current generation number; 0 before any Ingest.
func (idx *Index) Generation() uint64 {
	return idx.Snapshot().Generation()
}

// Lookup returns the ids of documents holding token exactly.
func (idx *Index) Lookup(token string) []string {
	s := idx.Snapshot()
	return s.IDs(s.Lookup(token))
}

// PrefixTokens returns the indexed tokens starting with prefix.
func (idx *Index) PrefixTokens(prefix string) []string {
	return idx.Snapshot().PrefixTokens(prefix)
}

// Documents returns the ingested documents in ingestion order.
func (idx *Index) Documents() []catalog.Document {
	return idx.Snapshot().Documents()
}

// Document returns the document with the given id.
func (idx *Index) Document(id string) (catalog.Document, bool) {
	return idx.Snapshot().Document(id)
}

// Stats describes the current generation.
func (idx *Index) Stats() Stats {
	return idx.Snapshot().Stats()
}

// Snapshot is one immutable index generation.
type Snapshot struct {
	gen      uint64
	docs     []catalog.Document
	byID     map[string]uint32
	postings map[string]*roaring.Bitmap
	tokens   []string
	prefixes *lru.Cache[string, []string]
	ingest   IngestStats
}

// Generation returns the generation number.
func (s *Snapshot) Generation() uint64 { return s.gen }

// Len returns the number of documents.
func (s *Snapshot) Len() int { return len(s.docs) }

// Lookup returns the posting list of token, or nil. The bitmap is shared
// and must not be modified.
func (s *Snapshot) Lookup(token string) *roaring.Bitmap {
	return s.postings[token]
}

// PrefixTokens returns, in sorted order, every token that starts with
// prefix (including prefix itself when indexed). An empty prefix matches
// nothing.
func (s *Snapshot) PrefixTokens(prefix string) []string {
	if prefix == "" {
		return nil
	}
	if cached, ok := s.prefixes.Get(prefix); ok {
		return cached
	}

	start := sort.SearchStrings(s.tokens, prefix)
	end := start
	for end < len(s.tokens) && strings.HasPrefix(s.tokens[end], prefix) {
		end++
	}
	matches := s.tokens[start:end:end]
	s.prefixes.Add(prefix, matches)
	return matches
}

// DocumentAt returns the document with ordinal ord.
func (s *Snapshot) DocumentAt(ord uint32) catalog.Document {
	return s.docs[ord]
}

// Document returns the document with the given id.
func (s *Snapshot) Document(id string) (catalog.Document, bool) {
	ord, ok := s.byID[id]
	if !ok {
		return catalog.Document{}, false
	}
	return s.docs[ord], true
}

// Documents returns a copy of the document list in ingestion order.
func (s *Snapshot) Documents() []catalog.Document {
	out := make([]catalog.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// IDs maps a posting list to document ids in ordinal order.
func (s *Snapshot) IDs(bm *roaring.Bitmap) []string {
	if bm == nil {
		return nil
	}
	ids := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ids = append(ids, s.docs[it.Next()].ID)
	}
	return ids
}

// Stats describes one generation.
type Stats struct {
	Generation  uint64      `json:"generation"`
	Documents   int         `json:"documents"`
	Tokens      int         `json:"tokens"`
	Postings    uint64      `json:"postings"`
	SizeBytes   uint64      `json:"size_bytes"`
	LastIngest  IngestStats `json:"last_ingest"`
	Fingerprint string      `json:"fingerprint"`
}

// Stats returns counters for this generation.
func (s *Snapshot) Stats() Stats {
	st := Stats{
		Generation:  s.gen,
		Documents:   len(s.docs),
		Tokens:      len(s.tokens),
		LastIngest:  s.ingest,
		Fingerprint: s.ingest.Fingerprint,
	}
	for _, bm := range s.postings {
		st.Postings += bm.GetCardinality()
		st.SizeBytes += bm.GetSizeInBytes()
	}
	return st
}
