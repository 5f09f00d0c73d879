package insight

import (
	"testing"
	"time"

	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/risk"
)

func TestAnalyzeEmpty(t *testing.T) {
	s := Analyze(nil)

	if len(s.CategoryDistribution) != 0 || len(s.AvgDaysUntilExpiry) != 0 ||
		len(s.QuantityByCategory) != 0 || len(s.RiskDistribution) != 0 {
		t.Errorf("summary not empty: %+v", s)
	}
	if s.CategoryDistribution == nil {
		t.Error("maps should be initialized, not nil")
	}
}

func TestAnalyzeQuantitiesAndCounts(t *testing.T) {
	now := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	items := []model.Item{
		expiring("milk", "Dairy", 2, 5, now),
		expiring("yogurt", "Dairy", 3, 5, now),
		expiring("apple", "Fruits", 1, 5, now),
	}

	s := Analyze(risk.ScoreItems(items, now))

	if s.QuantityByCategory["Dairy"] != 5 || s.QuantityByCategory["Fruits"] != 1 {
		t.Errorf("QuantityByCategory = %v, want Dairy:5 Fruits:1", s.QuantityByCategory)
	}
	if s.CategoryDistribution["Dairy"] != 2 || s.CategoryDistribution["Fruits"] != 1 {
		t.Errorf("CategoryDistribution = %v, want Dairy:2 Fruits:1", s.CategoryDistribution)
	}
}

func TestAnalyzeMeanDays(t *testing.T) {
	now := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	items := []model.Item{
		expiring("milk", "Dairy", 1, 2, now),
		expiring("cheese", "Dairy", 1, 5, now),
		expiring("bread", "Bakery", 1, 1, now),
		expiring("bagel", "Bakery", 1, 2, now),
		expiring("muffin", "Bakery", 1, 2, now),
	}

	s := Analyze(risk.ScoreItems(items, now))

	if got := s.AvgDaysUntilExpiry["Dairy"]; got != 3.5 {
		t.Errorf("Dairy mean = %v, want 3.5", got)
	}
	// 5/3 days rounds to one decimal.
	if got := s.AvgDaysUntilExpiry["Bakery"]; got != 1.7 {
		t.Errorf("Bakery mean = %v, want 1.7", got)
	}
}

func TestAnalyzeUnknownDaysExcluded(t *testing.T) {
	now := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	items := []model.Item{
		expiring("milk", "Dairy", 1, 2, now),
		expiring("cheese", "Dairy", 1, 5, now),
		{Name: "butter", Category: "Dairy", Quantity: 4, Expiry: "sometime"},
	}

	s := Analyze(risk.ScoreItems(items, now))

	// The unparseable item still counts toward distribution and quantity
	// but stays out of the mean and the risk buckets.
	if s.CategoryDistribution["Dairy"] != 3 {
		t.Errorf("CategoryDistribution[Dairy] = %d, want 3", s.CategoryDistribution["Dairy"])
	}
	if s.QuantityByCategory["Dairy"] != 6 {
		t.Errorf("QuantityByCategory[Dairy] = %d, want 6", s.QuantityByCategory["Dairy"])
	}
	if got := s.AvgDaysUntilExpiry["Dairy"]; got != 3.5 {
		t.Errorf("Dairy mean = %v, want 3.5", got)
	}
	total := 0
	for _, n := range s.RiskDistribution {
		total += n
	}
	if total != 2 {
		t.Errorf("RiskDistribution total = %d, want 2: %v", total, s.RiskDistribution)
	}
}

func TestAnalyzeRiskDistribution(t *testing.T) {
	now := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	items := []model.Item{
		expiring("milk", "Dairy", 1, 0, now),
		expiring("yogurt", "Dairy", 1, 1, now),
		expiring("chicken", "Meat", 1, 3, now),
		expiring("carrot", "Vegetables", 1, 6, now),
		expiring("rice", "Other", 1, 200, now),
	}

	s := Analyze(risk.ScoreItems(items, now))

	want := map[risk.Tier]int{
		risk.TierCritical: 2,
		risk.TierHigh:     1,
		risk.TierMedium:   1,
		risk.TierLow:      1,
	}
	for tier, n := range want {
		if s.RiskDistribution[tier] != n {
			t.Errorf("RiskDistribution[%s] = %d, want %d", tier, s.RiskDistribution[tier], n)
		}
	}
}
