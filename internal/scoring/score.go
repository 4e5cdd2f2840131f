package scoring

import (
	"time"

	"github.com/kalambet/marketscout/internal/listing"
)

// Score fills every derived field of r. setSize is the number of records
// returned together with r for the same query.
func Score(r listing.Record, setSize int, now time.Time) listing.Record {
	identity := r.Key()

	r.SentimentScore = Sentiment(r.Title)
	r.SentimentLabel, r.Advice = SentimentLabel(r.SentimentScore)
	r.OpportunityScore = OpportunityScore(r.SentimentScore, r.ReviewCount, r.Price)

	r.SalesTrend = SalesTrend(identity, SearchHistoryDays, SearchForecastDays, now)
	f := ForecastTrend(r.SalesTrend, identity)
	r.GrowthPct = f.GrowthPct
	r.ConfidencePct = f.ConfidencePct

	r.EstimatedMonthlySales = EstimateMonthlySales(r.ReviewCount, identity)
	r.CompetitionScore = CompetitionScore(setSize)
	profit := EstimateProfit(r.Price, nil)
	r.Profit = &profit
	return r
}

// ScoreAll scores every record against the size of the whole set.
func ScoreAll(records []listing.Record, now time.Time) []listing.Record {
	out := make([]listing.Record, len(records))
	for i, r := range records {
		out[i] = Score(r, len(records), now)
	}
	return out
}
