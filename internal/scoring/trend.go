package scoring

import (
	"time"

	"github.com/kalambet/marketscout/internal/listing"
)

// Default series lengths for the search path and the details view.
const (
	SearchHistoryDays  = 10
	SearchForecastDays = 4
	DetailHistoryDays  = 20
	DetailForecastDays = 7
	minDailySales      = 5
	trendLabelLayout   = "Jan 02"
)

// SalesTrend builds a daily sales series ending at now: a random walk with
// drift for the past days followed by a steeper forecast. The walk is
// seeded by identity so a record's chart never changes between calls made
// on the same day.
func SalesTrend(identity string, days, forecastDays int, now time.Time) []listing.TrendPoint {
	r := seededRand("trend", identity)
	current := 10 + r.IntN(41)
	volatility := 0.1 + r.Float64()*0.3
	slope := -0.5 + r.Float64()*2.0

	points := make([]listing.TrendPoint, 0, days+forecastDays)
	for i := range days {
		change := float64(current)*volatility*(r.Float64()-0.5) + slope
		current = max(minDailySales, int(float64(current)+change))
		points = append(points, listing.TrendPoint{
			Label: now.AddDate(0, 0, -(days - i)).Format(trendLabelLayout),
			Value: float64(current),
		})
	}
	for i := 1; i <= forecastDays; i++ {
		change := float64(current)*(volatility/2)*(r.Float64()-0.4) + slope*1.5
		current = max(minDailySales, int(float64(current)+change))
		points = append(points, listing.TrendPoint{
			Label:      now.AddDate(0, 0, i).Format(trendLabelLayout),
			Value:      float64(current),
			IsForecast: true,
		})
	}
	return points
}
