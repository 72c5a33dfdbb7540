package service

import "github.com/agrostock/agrostock-backend/internal/alerting/domain"

// urgentStockPercentage is the stock percentage at or below which a critical alert is URGENT
const urgentStockPercentage = 10

// expiringHighDays is the number of remaining days at or below which an expiring alert is HIGH
const expiringHighDays = 7

// StockLevel maps stock as a percentage of the minimum to a severity, given
// the configured critical percentage.
func StockLevel(pct, criticalPct float64) domain.Level {
	switch {
	case pct <= urgentStockPercentage:
		return domain.LevelUrgent
	case pct <= criticalPct:
		return domain.LevelHigh
	case pct <= criticalPct*1.5:
		return domain.LevelMedium
	default:
		return domain.LevelLow
	}
}

// ExpiringLevel maps the days left before expiration to a severity
func ExpiringLevel(daysLeft int) domain.Level {
	if daysLeft <= expiringHighDays {
		return domain.LevelHigh
	}
	return domain.LevelMedium
}
