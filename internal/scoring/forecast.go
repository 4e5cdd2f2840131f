package scoring

import "github.com/kalambet/marketscout/internal/listing"

// Forecast is a monthly growth prediction with a confidence percentage.
type Forecast struct {
	GrowthPct     float64 `json:"growthPct"`
	ConfidencePct float64 `json:"confidencePct"`
}

const (
	minGrowth = -15.0
	maxGrowth = 45.0
)

// ForecastSeries predicts growth from a value series.
//
// With at least 5 points growth is the least-squares slope over the mean.
// With 2–4 points it is the last/first ratio. Below 2 points a baseline in
// [3,8]% growth and [65,80]% confidence is drawn from a stream seeded by
// identity, so the same record always gets the same baseline.
func ForecastSeries(values []float64, identity string) Forecast {
	n := len(values)
	if n < 2 {
		r := seededRand("forecast", identity)
		return Forecast{
			GrowthPct:     round1(3 + r.Float64()*5),
			ConfidencePct: float64(65 + r.IntN(16)),
		}
	}

	var growth float64
	if n < 5 {
		first, last := values[0], values[n-1]
		if first > 0 {
			growth = (last/first - 1) * 100
		} else {
			growth = 5
		}
	} else {
		growth = slopeGrowth(values)
	}

	return Forecast{
		GrowthPct:     round1(clamp(growth, minGrowth, maxGrowth)),
		ConfidencePct: float64(70 + min(2*n, 25)),
	}
}

// ForecastTrend forecasts from the values of a sales trend.
func ForecastTrend(points []listing.TrendPoint, identity string) Forecast {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return ForecastSeries(values, identity)
}

func slopeGrowth(y []float64) float64 {
	n := float64(len(y))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	var slope float64
	if den := n*sumXX - sumX*sumX; den != 0 {
		slope = (n*sumXY - sumX*sumY) / den
	}
	mean := sumY / n
	if mean <= 0 {
		return 5
	}
	return slope / mean * 100
}
