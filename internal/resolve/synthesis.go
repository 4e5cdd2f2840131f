package resolve

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kalambet/marketscout/internal/listing"
	"github.com/kalambet/marketscout/internal/scoring"
)

// PredictionPlatform tags synthesized records.
const PredictionPlatform = "AI Forecast"

// PredictionNote accompanies synthesized results.
const PredictionNote = "We are showing predicted values while we finish scanning the live market. Please refresh in a moment."

type prediction struct {
	title      string
	minPrice   int
	maxPrice   int
	pos        float64
	growth     float64
	confidence float64
	sentiment  float64
	image      string
}

var predictions = []prediction{
	{
		title:    "Predicted %s (High Potential SKU)",
		minPrice: 1000, maxPrice: 5000,
		pos: 85.5, growth: 18.2, confidence: 94, sentiment: 0.75,
		image: "https://images.unsplash.com/photo-1614064641935-3bb753150c6d?w=200",
	},
	{
		title:    "Budget %s Variant",
		minPrice: 500, maxPrice: 1500,
		pos: 62.1, growth: 5.4, confidence: 82, sentiment: 0.55,
		image: "https://images.unsplash.com/photo-1558486012-817176f84c6d?w=200",
	},
}

// SynthesisTier fabricates clearly flagged placeholder records. It always
// succeeds for a non-empty query.
type SynthesisTier struct {
	intN func(n int) int
	now  func() time.Time
}

func NewSynthesisTier() *SynthesisTier {
	return &SynthesisTier{intN: rand.IntN, now: time.Now}
}

func (t *SynthesisTier) Name() string { return "synthesis" }

func (t *SynthesisTier) TryResolve(_ context.Context, q string) (Result, bool) {
	if q == "" {
		q = "product"
	}
	name := cases.Title(language.English).String(q)
	slug := strings.ReplaceAll(q, " ", "_")

	records := make([]listing.Record, 0, len(predictions))
	for _, p := range predictions {
		price := float64(p.minPrice + t.intN(p.maxPrice-p.minPrice+1))
		r := listing.Record{
			ID:               fmt.Sprintf("ai_%s_%d", slug, 100+t.intN(900)),
			Title:            fmt.Sprintf(p.title, name),
			Price:            price,
			Platform:         PredictionPlatform,
			ImageURL:         p.image,
			SentimentScore:   p.sentiment,
			OpportunityScore: p.pos,
			GrowthPct:        p.growth,
			ConfidencePct:    p.confidence,
			CompetitionScore: scoring.CompetitionScore(len(predictions)),
			IsPrediction:     true,
		}
		r.SentimentLabel, r.Advice = scoring.SentimentLabel(r.SentimentScore)
		r.SalesTrend = scoring.SalesTrend(r.Key(), scoring.SearchHistoryDays, scoring.SearchForecastDays, t.now())
		profit := scoring.EstimateProfit(price, nil)
		r.Profit = &profit
		records = append(records, r)
	}

	return Result{
		Results:      records,
		Source:       SourceGenerative,
		IsPrediction: true,
		Note:         PredictionNote,
		writeBack:    true,
	}, true
}
