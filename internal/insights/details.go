package insights

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kalambet/marketscout/internal/listing"
	"github.com/kalambet/marketscout/internal/scoring"
)

// Arbitrage constants for the resale simulation.
const (
	arbitrageSourcingRatio = 0.65
	arbitrageFeeRatio      = 0.15
	lowRiskMargin          = 25.0
	importThreshold        = 5000.0
	b2cThreshold           = 1000.0
)

// Detail is the deep view of one product.
type Detail struct {
	Product  listing.Record `json:"product"`
	Found    bool           `json:"found"`
	Analysis Analysis       `json:"analysis"`
}

// Analysis is the derived part of a Detail.
type Analysis struct {
	SalesHistory []listing.TrendPoint `json:"salesHistory"`
	Forecast     scoring.Forecast     `json:"forecast"`
	Sentiment    SentimentView        `json:"sentiment"`
	Arbitrage    *Arbitrage           `json:"arbitrage,omitempty"`
	Sourcing     *Sourcing            `json:"sourcing,omitempty"`
	Checklist    []string             `json:"checklist"`
}

type SentimentView struct {
	Score  float64 `json:"score"`
	Label  string  `json:"label"`
	Advice string  `json:"advice"`
}

type Arbitrage struct {
	SourcingCost    float64 `json:"estimatedSourcingCost"`
	PotentialProfit float64 `json:"potentialProfit"`
	MarginPct       float64 `json:"marginPct"`
	RiskLevel       string  `json:"riskLevel"`
	PlatformFeePct  float64 `json:"platformFeePct"`
}

type Sourcing struct {
	Strategy     string `json:"strategy"`
	Type         string `json:"type"`
	BestPlatform string `json:"bestPlatform"`
}

// Details finds id across products, trends and cached results and returns
// its long-range sales history, forecast and resale analysis. Unknown ids
// get a generic forecast keyed by the id.
func (s *Service) Details(ctx context.Context, id string) Detail {
	history := scoring.SalesTrend(id, scoring.DetailHistoryDays, scoring.DetailForecastDays, s.now())
	forecast := scoring.ForecastTrend(history, id)

	r, ok := s.find(ctx, id)
	if !ok {
		return Detail{
			Product: listing.Record{ID: id, Title: genericTitle(id), Platform: "AI Forecast"},
			Analysis: Analysis{
				SalesHistory: history,
				Forecast:     forecast,
				Sentiment:    SentimentView{Score: 0.5, Label: "Neutral", Advice: "Standard performance predicted."},
				Checklist:    []string{"High Demand", "Competitive Pricing"},
			},
		}
	}

	arb := arbitrage(r.Price)
	src := sourcing(r.Price)
	sentiment := SentimentView{Score: r.SentimentScore, Label: r.SentimentLabel, Advice: r.Advice}
	if sentiment.Label == "" {
		sentiment.Score = scoring.Sentiment(r.Title)
		sentiment.Label, sentiment.Advice = scoring.SentimentLabel(sentiment.Score)
	}
	demand := "Stable"
	if strings.Contains(sentiment.Label, "High") {
		demand = "Rising"
	}

	return Detail{
		Product: r,
		Found:   true,
		Analysis: Analysis{
			SalesHistory: history,
			Forecast:     forecast,
			Sentiment:    sentiment,
			Arbitrage:    &arb,
			Sourcing:     &src,
			Checklist: []string{
				"Verified Sourcing Available",
				fmt.Sprintf("Profitable Margin: %.1f%%", arb.MarginPct),
				"Demand Trend: " + demand,
				"Sourcing Strategy: " + src.Type,
			},
		},
	}
}

func (s *Service) find(ctx context.Context, id string) (listing.Record, bool) {
	if r, ok := s.catalog.FindByID(ctx, id); ok {
		return r, true
	}
	for _, e := range s.cache.Entries(ctx) {
		for _, r := range e.Results {
			if r.ID == id {
				return r, true
			}
		}
	}
	return listing.Record{}, false
}

func genericTitle(id string) string {
	if !strings.HasPrefix(id, "ai_") {
		return "Market Analysis Product"
	}
	parts := strings.Split(id, "_")
	if len(parts) < 3 || parts[1] == "" {
		return "AI Market Forecast"
	}
	return "Predicted " + cases.Title(language.English).String(parts[1]) + " SKU"
}

func arbitrage(price float64) Arbitrage {
	cost := price * arbitrageSourcingRatio
	profit := price - cost - price*arbitrageFeeRatio
	var margin float64
	if price > 0 {
		margin = profit / price * 100
	}
	risk := "Moderate"
	if margin > lowRiskMargin {
		risk = "Low"
	}
	return Arbitrage{
		SourcingCost:    math.Round(cost),
		PotentialProfit: math.Round(profit),
		MarginPct:       math.Round(margin*10) / 10,
		RiskLevel:       risk,
		PlatformFeePct:  arbitrageFeeRatio * 100,
	}
}

func sourcing(price float64) Sourcing {
	s := Sourcing{
		Strategy: "Local wholesale: fast turnover and lower risk for budget items.",
		Type:     "Local",
	}
	if price > importThreshold {
		s.Strategy = "Direct import: high value item with better margins via global sourcing."
		s.Type = "International"
	}
	s.BestPlatform = "Markaz (Reseller)"
	if price > b2cThreshold {
		s.BestPlatform = "Daraz (B2C)"
	}
	return s
}
