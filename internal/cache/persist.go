package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/Aman-CERP/autoprice/internal/errors"
	"github.com/Aman-CERP/autoprice/internal/storage"
)

// Storage keys used by the tier persisters.
const (
	// DurableStorageKey holds the whole durable tier as one JSON object.
	DurableStorageKey = "autoprice:cache:durable"
	// SessionKeyPrefix prefixes each session tier entry.
	SessionKeyPrefix = "autoprice:cache:session:"
)

// persister mirrors a tier into a storage.Backend. Failures are logged and
// swallowed: the in-memory tier stays authoritative.
type persister interface {
	// restore loads every persisted entry (blob mode only).
	restore() map[string]*item
	// fetch loads one entry (per-key mode only).
	fetch(key string) (*item, bool)
	// sync mirrors upserts and removals; all is the tier's full surviving set.
	sync(upserted map[string]*item, removed []string, all map[string]*item)
	// clear removes the mirror of the given keys and of anything else the
	// tier persisted. Returns how many entries existed only in storage.
	clear(keys []string) int
	// sweepStored removes expired entries that exist only in storage; live
	// is the in-memory set. Returns the number removed.
	sweepStored(now time.Time, live map[string]*item) int
}

// blobPersister writes the whole tier as one JSON object under one key.
type blobPersister struct {
	backend storage.Backend
	key     string
	logger  *slog.Logger
}

func newBlobPersister(backend storage.Backend, key string, logger *slog.Logger) *blobPersister {
	return &blobPersister{backend: backend, key: key, logger: logger}
}

func (p *blobPersister) restore() map[string]*item {
	raw, ok, err := p.backend.Read(p.key)
	if err != nil {
		p.logger.Warn("cache_restore_failed",
			slog.String("key", p.key),
			slog.String("error", err.Error()))
		return nil
	}
	if !ok {
		return nil
	}

	var stored map[string]storedEntry
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		// No partial recovery: the whole blob is discarded.
		ae := apperrors.New(apperrors.ErrCodeStorageCorrupt, "durable cache blob is unparsable", err).
			WithDetail("key", p.key)
		p.logger.LogAttrs(context.Background(), slog.LevelWarn, "cache_blob_discarded", apperrors.LogAttrs(ae)...)
		return nil
	}

	out := make(map[string]*item, len(stored))
	for k, se := range stored {
		out[k] = itemFromStored(se)
	}
	return out
}

func (p *blobPersister) fetch(string) (*item, bool) {
	return nil, false
}

func (p *blobPersister) sync(_ map[string]*item, _ []string, all map[string]*item) {
	blob := make(map[string]json.RawMessage, len(all))
	for k, it := range all {
		data, err := json.Marshal(it.snapshot())
		if err != nil {
			p.logger.Warn("cache_entry_not_serializable",
				slog.String("key", k),
				slog.String("error", err.Error()))
			continue
		}
		blob[k] = data
	}

	data, err := json.Marshal(blob)
	if err != nil {
		p.writeFailed(err)
		return
	}
	if err := p.backend.Write(p.key, string(data)); err != nil {
		p.writeFailed(err)
	}
}

func (p *blobPersister) clear([]string) int {
	if err := p.backend.Remove(p.key); err != nil {
		p.writeFailed(err)
	}
	return 0
}

// The blob is restored eagerly, so storage never holds entries memory lacks.
func (p *blobPersister) sweepStored(time.Time, map[string]*item) int {
	return 0
}

func (p *blobPersister) writeFailed(err error) {
	ae := apperrors.StorageError("durable cache write failed; continuing in memory", err).
		WithDetail("key", p.key)
	p.logger.LogAttrs(context.Background(), slog.LevelWarn, "cache_write_failed", apperrors.LogAttrs(ae)...)
}

// keyedPersister writes each entry under its own key.
type keyedPersister struct {
	backend storage.Backend
	prefix  string
	logger  *slog.Logger
}

func newKeyedPersister(backend storage.Backend, prefix string, logger *slog.Logger) *keyedPersister {
	return &keyedPersister{backend: backend, prefix: prefix, logger: logger}
}

func (p *keyedPersister) restore() map[string]*item {
	return nil
}

func (p *keyedPersister) fetch(key string) (*item, bool) {
	raw, ok, err := p.backend.Read(p.prefix + key)
	if err != nil {
		p.logger.Warn("cache_fetch_failed",
			slog.String("key", p.prefix+key),
			slog.String("error", err.Error()))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var se storedEntry
	if err := json.Unmarshal([]byte(raw), &se); err != nil {
		p.logger.Warn("cache_entry_discarded",
			slog.String("key", p.prefix+key),
			slog.String("error", err.Error()))
		_ = p.backend.Remove(p.prefix + key)
		return nil, false
	}
	return itemFromStored(se), true
}

func (p *keyedPersister) sync(upserted map[string]*item, removed []string, _ map[string]*item) {
	for _, k := range removed {
		if err := p.backend.Remove(p.prefix + k); err != nil {
			p.writeFailed(k, err)
		}
	}
	for k, it := range upserted {
		data, err := json.Marshal(it.snapshot())
		if err != nil {
			p.writeFailed(k, err)
			continue
		}
		if err := p.backend.Write(p.prefix+k, string(data)); err != nil {
			p.writeFailed(k, err)
		}
	}
}

func (p *keyedPersister) clear(keys []string) int {
	p.sync(nil, keys, nil)

	// Whatever is left was persisted but never fetched into memory.
	rest, err := p.backend.List(p.prefix)
	if err != nil {
		p.writeFailed("*", err)
		return 0
	}
	n := 0
	for _, sk := range rest {
		if err := p.backend.Remove(sk); err != nil {
			p.writeFailed(strings.TrimPrefix(sk, p.prefix), err)
			continue
		}
		n++
	}
	return n
}

func (p *keyedPersister) sweepStored(now time.Time, live map[string]*item) int {
	stored, err := p.backend.List(p.prefix)
	if err != nil {
		p.logger.Warn("cache_list_failed",
			slog.String("prefix", p.prefix),
			slog.String("error", err.Error()))
		return 0
	}

	n := 0
	for _, sk := range stored {
		key := strings.TrimPrefix(sk, p.prefix)
		if _, ok := live[key]; ok {
			continue
		}
		// fetch drops undecodable entries itself.
		it, ok := p.fetch(key)
		if !ok || !it.expired(now) {
			continue
		}
		if err := p.backend.Remove(sk); err != nil {
			p.writeFailed(key, err)
			continue
		}
		n++
	}
	return n
}

func (p *keyedPersister) writeFailed(key string, err error) {
	ae := apperrors.StorageError("session cache write failed; continuing in memory", err).
		WithDetail("key", p.prefix+key)
	p.logger.LogAttrs(context.Background(), slog.LevelWarn, "cache_write_failed", apperrors.LogAttrs(ae)...)
}
