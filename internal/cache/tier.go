package cache

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Aman-CERP/autoprice/internal/errors"
)

// Tier names one cache level.
type Tier string

const (
	// TierFast is the volatile in-process tier.
	TierFast Tier = "fast"
	// TierSession is written through per key to session-scoped storage.
	TierSession Tier = "session"
	// TierDurable is serialized as one blob to durable storage.
	TierDurable Tier = "durable"
	// TierAll addresses every tier in Delete and Clear.
	TierAll Tier = "all"
)

// tierOrder is the lookup chain, highest priority first.
var tierOrder = []Tier{TierFast, TierSession, TierDurable}

// Tiers returns the concrete tiers in lookup order.
func Tiers() []Tier {
	out := make([]Tier, len(tierOrder))
	copy(out, tierOrder)
	return out
}

// ParseTier converts untrusted input into a Tier.
// "all" is accepted only when allowAll is set.
func ParseTier(s string, allowAll bool) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t.valid() || (allowAll && t == TierAll) {
		return t, nil
	}
	return "", apperrors.New(apperrors.ErrCodeInvalidTier,
		fmt.Sprintf("unknown cache tier %q", s), nil).
		WithSuggestion("use one of: fast, session, durable")
}

func (t Tier) valid() bool {
	return t.index() >= 0
}

// index returns the position of t in the lookup chain, -1 if unknown.
func (t Tier) index() int {
	for i, o := range tierOrder {
		if o == t {
			return i
		}
	}
	return -1
}

// chainFrom returns the hint followed by every lower tier.
func chainFrom(hint Tier) []Tier {
	return tierOrder[hint.index():]
}

// TierConfig configures one tier.
type TierConfig struct {
	Capacity   int
	DefaultTTL time.Duration
}

// DefaultTierConfigs returns the default capacity and TTL of each tier.
func DefaultTierConfigs() map[Tier]TierConfig {
	return map[Tier]TierConfig{
		TierFast:    {Capacity: 100, DefaultTTL: 5 * time.Minute},
		TierSession: {Capacity: 500, DefaultTTL: 30 * time.Minute},
		TierDurable: {Capacity: 1000, DefaultTTL: 24 * time.Hour},
	}
}
