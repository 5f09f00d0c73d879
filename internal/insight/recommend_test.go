package insight

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/risk"
)

// expiring builds an item whose expiry lands the given number of days after now.
func expiring(name, category string, quantity, days int, now time.Time) model.Item {
	return model.Item{
		Name:     name,
		Category: category,
		Quantity: quantity,
		Expiry:   now.AddDate(0, 0, days).Format(model.DateLayout),
	}
}

func TestRecommendationsEmptyPantry(t *testing.T) {
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

	recs := Recommendations(nil, now)
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1: %v", len(recs), recs)
	}
	if recs[0] != msgEmptyPantry {
		t.Errorf("recs[0] = %q, want %q", recs[0], msgEmptyPantry)
	}
}

func TestRecommendationsWellBalanced(t *testing.T) {
	// Mid-April, plenty of vegetables and fruit, nothing expiring within a
	// week, every quantity above one: no rule fires.
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	items := []model.Item{
		expiring("carrot", "Vegetables", 4, 10, now),
		expiring("spinach", "Vegetables", 2, 9, now),
		expiring("broccoli", "Vegetables", 3, 11, now),
		expiring("apple", "Fruits", 6, 12, now),
		expiring("banana", "Fruits", 5, 10, now),
	}

	recs := Recommendations(risk.ScoreItems(items, now), now)
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1: %v", len(recs), recs)
	}
	if recs[0] != msgWellBalanced {
		t.Errorf("recs[0] = %q, want %q", recs[0], msgWellBalanced)
	}
}

func TestRecommendationsExpiryCounts(t *testing.T) {
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	items := []model.Item{
		expiring("milk", "Dairy", 2, 0, now),
		expiring("yogurt", "Dairy", 2, 1, now),
		expiring("chicken", "Meat", 2, 3, now),
	}

	recs := Recommendations(risk.ScoreItems(items, now), now)
	if len(recs) < 2 {
		t.Fatalf("recs = %v, want expiry messages first", recs)
	}

	wantCritical := fmt.Sprintf("🚨 %d items expire today/tomorrow! Use them immediately.", 2)
	wantHigh := fmt.Sprintf("⚠️ %d items expire in 2-3 days. Plan meals around them.", 1)
	if recs[0] != wantCritical {
		t.Errorf("recs[0] = %q, want %q", recs[0], wantCritical)
	}
	if recs[1] != wantHigh {
		t.Errorf("recs[1] = %q, want %q", recs[1], wantHigh)
	}
}

func TestRecommendationsMeatOnlyPantry(t *testing.T) {
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	var items []model.Item
	for i := 0; i < 5; i++ {
		items = append(items, expiring(fmt.Sprintf("cut %d", i), "Meat", 2, 10, now))
	}

	recs := Recommendations(risk.ScoreItems(items, now), now)

	joined := strings.Join(recs, "\n")
	if !strings.Contains(joined, msgLowVeg) {
		t.Errorf("missing low-vegetables advisory in %v", recs)
	}
	if !strings.Contains(joined, msgLowFruit) {
		t.Errorf("missing low-fruits advisory in %v", recs)
	}
}

func TestRecommendationsRunningLow(t *testing.T) {
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	items := []model.Item{
		expiring("carrot", "Vegetables", 1, 10, now),
		expiring("spinach", "Vegetables", 0, 10, now),
		expiring("broccoli", "Vegetables", 3, 10, now),
		expiring("apple", "Fruits", 6, 12, now),
		expiring("banana", "Fruits", 5, 10, now),
	}

	recs := Recommendations(risk.ScoreItems(items, now), now)
	want := fmt.Sprintf("📦 %d items are running low. Consider restocking.", 2)
	if len(recs) != 1 || recs[0] != want {
		t.Errorf("recs = %v, want [%q]", recs, want)
	}
}

func TestRecommendationsSeasonalTips(t *testing.T) {
	items := []model.Item{
		{Name: "carrot", Category: "Vegetables", Quantity: 4, Expiry: "2027-01-01"},
		{Name: "spinach", Category: "Vegetables", Quantity: 4, Expiry: "2027-01-01"},
		{Name: "broccoli", Category: "Vegetables", Quantity: 4, Expiry: "2027-01-01"},
		{Name: "apple", Category: "Fruits", Quantity: 4, Expiry: "2027-01-01"},
		{Name: "banana", Category: "Fruits", Quantity: 4, Expiry: "2027-01-01"},
	}

	tests := []struct {
		month time.Month
		want  string
	}{
		{time.December, msgWinterTip},
		{time.January, msgWinterTip},
		{time.February, msgWinterTip},
		{time.June, msgSummerTip},
		{time.July, msgSummerTip},
		{time.August, msgSummerTip},
	}

	for _, tt := range tests {
		now := time.Date(2026, tt.month, 10, 12, 0, 0, 0, time.UTC)
		recs := Recommendations(risk.ScoreItems(items, now), now)
		if len(recs) != 1 || recs[0] != tt.want {
			t.Errorf("%v: recs = %v, want [%q]", tt.month, recs, tt.want)
		}
	}

	// Shoulder months carry no seasonal tip.
	for _, month := range []time.Month{time.March, time.May, time.September, time.November} {
		now := time.Date(2026, month, 10, 12, 0, 0, 0, time.UTC)
		recs := Recommendations(risk.ScoreItems(items, now), now)
		if len(recs) != 1 || recs[0] != msgWellBalanced {
			t.Errorf("%v: recs = %v, want [%q]", month, recs, msgWellBalanced)
		}
	}
}

func TestRecommendationsRuleOrder(t *testing.T) {
	// December snapshot triggering every rule except the category advisories.
	now := time.Date(2026, 12, 10, 12, 0, 0, 0, time.UTC)
	items := []model.Item{
		expiring("milk", "Dairy", 1, 1, now),
		expiring("chicken", "Meat", 5, 3, now),
		expiring("carrot", "Vegetables", 4, 20, now),
		expiring("spinach", "Vegetables", 4, 20, now),
		expiring("broccoli", "Vegetables", 4, 20, now),
		expiring("apple", "Fruits", 4, 20, now),
		expiring("banana", "Fruits", 4, 20, now),
	}

	recs := Recommendations(risk.ScoreItems(items, now), now)
	want := []string{
		"🚨 1 items expire today/tomorrow! Use them immediately.",
		"⚠️ 1 items expire in 2-3 days. Plan meals around them.",
		"📦 1 items are running low. Consider restocking.",
		msgWinterTip,
	}
	if len(recs) != len(want) {
		t.Fatalf("recs = %v, want %v", recs, want)
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Errorf("recs[%d] = %q, want %q", i, recs[i], want[i])
		}
	}
}
