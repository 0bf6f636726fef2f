// Package cache implements the three-tier catalog cache: a volatile fast
// tier, a session tier written through per key, and a durable tier
// serialized as one blob. Entries expire by TTL, are evicted by a combined
// frequency/recency score when a tier is full, and are promoted into a
// higher tier on a lower-tier hit while keeping their remaining TTL.
//
// Each TierStore guards its entries with its own RWMutex: lookups share the
// read lock and update access metadata atomically, while inserts, deletes,
// evictions and the periodic sweep take the write lock of the tier they touch.
package cache
