package insight

import (
	"fmt"
	"time"

	"github.com/larderhq/larder/internal/risk"
)

const (
	msgEmptyPantry  = "🛒 Your pantry is empty! Time to go shopping."
	msgWellBalanced = "✅ Your pantry looks well-balanced!"
	msgLowVeg       = "🥬 Consider adding more vegetables to your pantry for a balanced diet."
	msgLowFruit     = "🍎 Your fruit supply is low. Fresh fruits are great for health!"
	msgWinterTip    = "❄️ Winter tip: Stock up on citrus fruits and warming spices!"
	msgSummerTip    = "☀️ Summer tip: Keep plenty of fresh fruits and cold beverages!"
)

// Recommendations produces ordered advisory strings for a scored inventory
// snapshot. Each rule contributes at most one message and rules never
// short-circuit each other; an empty snapshot short-circuits to a single
// go-shopping message.
func Recommendations(scored []risk.ScoredItem, now time.Time) []string {
	if len(scored) == 0 {
		return []string{msgEmptyPantry}
	}

	critical, high, lowQuantity := 0, 0, 0
	byCategory := make(map[string]int)
	for _, s := range scored {
		switch s.Tier {
		case risk.TierCritical:
			critical++
		case risk.TierHigh:
			high++
		}
		byCategory[s.Category]++
		if s.Quantity <= 1 {
			lowQuantity++
		}
	}

	var recs []string
	if critical > 0 {
		recs = append(recs, fmt.Sprintf("🚨 %d items expire today/tomorrow! Use them immediately.", critical))
	}
	if high > 0 {
		recs = append(recs, fmt.Sprintf("⚠️ %d items expire in 2-3 days. Plan meals around them.", high))
	}
	if byCategory["Vegetables"] < 3 {
		recs = append(recs, msgLowVeg)
	}
	if byCategory["Fruits"] < 2 {
		recs = append(recs, msgLowFruit)
	}
	if lowQuantity > 0 {
		recs = append(recs, fmt.Sprintf("📦 %d items are running low. Consider restocking.", lowQuantity))
	}
	switch now.Month() {
	case time.December, time.January, time.February:
		recs = append(recs, msgWinterTip)
	case time.June, time.July, time.August:
		recs = append(recs, msgSummerTip)
	}

	if len(recs) == 0 {
		return []string{msgWellBalanced}
	}
	return recs
}
