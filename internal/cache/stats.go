package cache

import "time"

// TierStats reports the counters of one tier.
type TierStats struct {
	Tier        Tier          `json:"tier"`
	Size        int           `json:"size"`
	Capacity    int           `json:"capacity"`
	DefaultTTL  time.Duration `json:"default_ttl"`
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Evictions   int64         `json:"evictions"`
	Expirations int64         `json:"expirations"`
	Promotions  int64         `json:"promotions"`
}

// Stats is a point-in-time view of the whole cache. Tier counters record
// every tier a lookup walked; Hits and Misses count each Get once.
type Stats struct {
	Tiers []TierStats `json:"tiers"`
	// Entries is the total number of entries across tiers.
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	// HitRate is Hits / (Hits + Misses), 0 when idle.
	HitRate float64 `json:"hit_rate"`
}

// Stats returns the counters of every tier in lookup order.
func (m *Manager) Stats() Stats {
	s := Stats{Hits: m.hits.Load(), Misses: m.misses.Load()}
	for _, t := range tierOrder {
		ts := m.tiers[t].stats()
		s.Tiers = append(s.Tiers, ts)
		s.Entries += ts.Size
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
