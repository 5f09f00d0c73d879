package insight

import (
	"fmt"

	"github.com/larderhq/larder/internal/model"
)

// RestockAlerts returns one alert per item whose quantity has dropped below
// its restock threshold. Computed at view time, never stored.
func RestockAlerts(items []model.Item) []string {
	var alerts []string
	for _, item := range items {
		if item.RestockThreshold != nil && item.Quantity < *item.RestockThreshold {
			alerts = append(alerts, fmt.Sprintf("⚠️ %s is below restock threshold!", item.Name))
		}
	}
	return alerts
}
