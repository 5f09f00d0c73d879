package insight

import (
	"math"

	"github.com/larderhq/larder/internal/risk"
)

// Summary aggregates a scored inventory snapshot for the dashboard.
type Summary struct {
	CategoryDistribution map[string]int     `json:"category_distribution"`
	AvgDaysUntilExpiry   map[string]float64 `json:"avg_days_until_expiry"`
	QuantityByCategory   map[string]int     `json:"quantity_by_category"`
	RiskDistribution     map[risk.Tier]int  `json:"risk_distribution"`
}

// Analyze computes the four summary mappings. Items with unknown days are
// excluded from the per-category expiry means and the risk distribution
// but still counted everywhere else. Means are rounded to one decimal.
func Analyze(scored []risk.ScoredItem) Summary {
	s := Summary{
		CategoryDistribution: make(map[string]int),
		AvgDaysUntilExpiry:   make(map[string]float64),
		QuantityByCategory:   make(map[string]int),
		RiskDistribution:     make(map[risk.Tier]int),
	}

	daySums := make(map[string]int)
	dayCounts := make(map[string]int)
	for _, item := range scored {
		s.CategoryDistribution[item.Category]++
		s.QuantityByCategory[item.Category] += item.Quantity
		if item.Tier != "" {
			s.RiskDistribution[item.Tier]++
		}
		if item.Days != nil {
			daySums[item.Category] += *item.Days
			dayCounts[item.Category]++
		}
	}

	for category, sum := range daySums {
		mean := float64(sum) / float64(dayCounts[category])
		s.AvgDaysUntilExpiry[category] = math.Round(mean*10) / 10
	}
	return s
}
