package scoring

import "github.com/kalambet/marketscout/internal/listing"

// Marketplace fee model used by EstimateProfit.
const (
	DefaultSourcingRatio = 0.6
	CommissionRate       = 0.12
	PaymentFeeRate       = 0.0125
	PackagingCost        = 30.0
)

// OpportunityScore blends demand, volume and price into a 0–100 ranking:
// sentiment×40 + min(reviews/100,1)×30 + min(price/5000,1)×30, rounded to
// one decimal. Negative inputs count as zero.
func OpportunityScore(sentiment float64, reviews int, price float64) float64 {
	sentiment = clamp(sentiment, 0, 1)
	rc := float64(max(reviews, 0))
	price = max(price, 0)

	score := sentiment*40 + min(rc/100, 1)*30 + min(price/5000, 1)*30
	return clamp(round1(score), 0, 100)
}

// CompetitionScore maps the size of a result set to an opportunity score.
// Fewer co-returned listings means less saturation. An empty set is 50.
func CompetitionScore(count int) int {
	switch {
	case count <= 0:
		return 50
	case count < 5:
		return 85
	case count < 10:
		return 65
	case count < 20:
		return 40
	default:
		return 20
	}
}

// EstimateMonthlySales assumes 40 sales per review spread over a year,
// jittered by a factor in [0.8,1.2] seeded by identity, floored at 5.
func EstimateMonthlySales(reviews int, identity string) int {
	monthly := float64(max(reviews, 0)) * 40 / 12
	jitter := 0.8 + seededRand("sales", identity).Float64()*0.4
	return int(max(monthly*jitter, 5))
}

// EstimateProfit computes resale profit at price. A nil sourcing cost
// defaults to 60% of price. Non-positive prices yield a zero margin.
func EstimateProfit(price float64, sourcing *float64) listing.Profit {
	price = max(price, 0)
	cost := price * DefaultSourcingRatio
	if sourcing != nil && *sourcing >= 0 {
		cost = *sourcing
	}

	fees := price*CommissionRate + price*PaymentFeeRate + PackagingCost
	profit := price - cost - fees
	var margin float64
	if price > 0 {
		margin = profit / price * 100
	}

	return listing.Profit{
		RetailPrice:  price,
		SourcingCost: round2(cost),
		Fees:         round2(fees),
		Profit:       round2(profit),
		MarginPct:    round2(margin),
		IsProfitable: profit > 0,
	}
}
