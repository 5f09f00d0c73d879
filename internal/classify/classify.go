package classify

import (
	"strings"
	"time"
)

// Fallback is the category assigned when nothing matches.
const Fallback = "Other"

// defaultShelfLifeDays is the shelf life for categories missing from the table.
const defaultShelfLifeDays = 7

// Category is one food grouping: a display name, the keywords that map item
// names onto it, and the default shelf life used to suggest expiry dates.
type Category struct {
	Name          string
	Keywords      []string
	ShelfLifeDays int
}

// Table is an ordered list of categories. Order matters: classification is
// first-match-wins, so a name matching keywords in two categories resolves
// to whichever is declared first ("milk" is Dairy, not Beverages).
type Table []Category

// Default returns the canonical ten-category table.
func Default() Table {
	return defaultTable
}

var defaultTable = Table{
	{Name: "Dairy", ShelfLifeDays: 7,
		Keywords: []string{"milk", "cheese", "yogurt", "butter", "cream", "sour cream", "cottage cheese"}},
	{Name: "Vegetables", ShelfLifeDays: 10,
		Keywords: []string{"carrot", "potato", "onion", "tomato", "lettuce", "spinach", "broccoli", "celery"}},
	{Name: "Fruits", ShelfLifeDays: 7,
		Keywords: []string{"apple", "banana", "orange", "grapes", "strawberry", "blueberry", "lemon", "lime"}},
	{Name: "Beverages", ShelfLifeDays: 365,
		Keywords: []string{"water", "juice", "soda", "beer", "wine", "coffee", "tea", "milk"}},
	{Name: "Bakery", ShelfLifeDays: 5,
		Keywords: []string{"bread", "bagel", "muffin", "croissant", "cake", "cookies", "pizza"}},
	{Name: "Meat", ShelfLifeDays: 3,
		Keywords: []string{"chicken", "beef", "pork", "fish", "turkey", "ham", "bacon", "sausage"}},
	{Name: "Frozen", ShelfLifeDays: 90,
		Keywords: []string{"ice cream", "frozen vegetables", "frozen fruit", "frozen pizza", "frozen dinner"}},
	{Name: "Snacks", ShelfLifeDays: 180,
		Keywords: []string{"chips", "crackers", "nuts", "popcorn", "candy", "chocolate", "granola"}},
	{Name: "Condiments/Spices", ShelfLifeDays: 365,
		Keywords: []string{"salt", "pepper", "ketchup", "mustard", "mayo", "hot sauce", "vinegar"}},
	{Name: "Other", ShelfLifeDays: 730,
		Keywords: []string{"rice", "pasta", "cereal", "oil", "flour", "sugar"}},
}

// Classifier assigns categories and shelf lives from an injected table.
type Classifier struct {
	table Table
}

func New(table Table) *Classifier {
	return &Classifier{table: table}
}

// Classify returns the category for a free-text item name.
// Matching is case-insensitive, in two phases: first a containment pass over
// every keyword in declaration order (keyword in name, or name in keyword),
// then a word-overlap score against each category's combined keyword text.
// Ties in the overlap phase keep the earliest category. Falls back to
// "Other" when nothing scores.
func (c *Classifier) Classify(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Fallback
	}

	// Phase 1: containment, first match wins
	for _, cat := range c.table {
		for _, kw := range cat.Keywords {
			if strings.Contains(name, kw) || strings.Contains(kw, name) {
				return cat.Name
			}
		}
	}

	// Phase 2: word overlap against each category's keyword text
	nameWords := wordSet(name)
	best := Fallback
	bestScore := 0
	for _, cat := range c.table {
		overlap := 0
		for w := range wordSet(strings.Join(cat.Keywords, " ")) {
			if _, ok := nameWords[w]; ok {
				overlap++
			}
		}
		if overlap > bestScore {
			bestScore = overlap
			best = cat.Name
		}
	}
	return best
}

// ShelfLifeDays returns the category's default shelf life, or 7 days for a
// category not in the table.
func (c *Classifier) ShelfLifeDays(category string) int {
	for _, cat := range c.table {
		if cat.Name == category {
			return cat.ShelfLifeDays
		}
	}
	return defaultShelfLifeDays
}

// SuggestExpiry returns today plus the category's shelf life. Used only to
// pre-fill the expiry field on new entries; stored items are never re-dated.
func (c *Classifier) SuggestExpiry(category string, today time.Time) time.Time {
	return today.AddDate(0, 0, c.ShelfLifeDays(category))
}

// Categories returns the category names in declaration order, for form selects.
func (c *Classifier) Categories() []string {
	names := make([]string, len(c.table))
	for i, cat := range c.table {
		names[i] = cat.Name
	}
	return names
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
