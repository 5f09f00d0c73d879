package risk

import (
	"math"
	"time"

	"github.com/larderhq/larder/internal/model"
)

type Tier string

const (
	TierCritical Tier = "Critical"
	TierHigh     Tier = "High"
	TierMedium   Tier = "Medium"
	TierLow      Tier = "Low"
)

type Freshness string

const (
	FreshnessExpired      Freshness = "Expired"
	FreshnessExpiringSoon Freshness = "Expiring Soon"
	FreshnessFresh        Freshness = "Fresh"
)

// ScoredItem is an item annotated with its expiry assessment. Days is nil
// when the stored expiry date cannot be parsed; Tier and Freshness are
// empty in that case and render as "N/A".
type ScoredItem struct {
	model.Item
	Days      *int      `json:"days_until_expiry"`
	Tier      Tier      `json:"tier,omitempty"`
	Freshness Freshness `json:"freshness,omitempty"`
}

// Score returns whole days from now until expiry and the urgency tier.
// Days are floored, so a partially elapsed day counts as spent and
// anything already past comes back negative.
func Score(expiry, now time.Time) (int, Tier) {
	days := int(math.Floor(expiry.Sub(now).Hours() / 24))
	return days, TierFor(days)
}

// TierFor buckets a days-until-expiry count. Negative days land in
// Critical rather than a separate expired tier.
func TierFor(days int) Tier {
	switch {
	case days <= 1:
		return TierCritical
	case days <= 3:
		return TierHigh
	case days <= 7:
		return TierMedium
	default:
		return TierLow
	}
}

// FreshnessFor labels a days-until-expiry count with the coarse spoilage
// state shown next to the tier.
func FreshnessFor(days int) Freshness {
	switch {
	case days <= 0:
		return FreshnessExpired
	case days <= 2:
		return FreshnessExpiringSoon
	default:
		return FreshnessFresh
	}
}

// ScoreItem evaluates a single item against the given clock.
func ScoreItem(item model.Item, now time.Time) ScoredItem {
	expiry, err := time.Parse(model.DateLayout, item.Expiry)
	if err != nil {
		return ScoredItem{Item: item}
	}
	days, tier := Score(expiry, now)
	return ScoredItem{
		Item:      item,
		Days:      &days,
		Tier:      tier,
		Freshness: FreshnessFor(days),
	}
}

// ScoreItems evaluates a snapshot of items, preserving order.
func ScoreItems(items []model.Item, now time.Time) []ScoredItem {
	scored := make([]ScoredItem, len(items))
	for i, item := range items {
		scored[i] = ScoreItem(item, now)
	}
	return scored
}
