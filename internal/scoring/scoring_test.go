package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/kalambet/marketscout/internal/listing"
)

func TestEstimateProfit_DefaultSourcing(t *testing.T) {
	p := EstimateProfit(1000, nil)
	if p.SourcingCost != 600 {
		t.Errorf("SourcingCost = %v, want 600", p.SourcingCost)
	}
	if p.Fees != 162.5 {
		t.Errorf("Fees = %v, want 162.5", p.Fees)
	}
	if p.Profit != 237.5 {
		t.Errorf("Profit = %v, want 237.5", p.Profit)
	}
	if p.MarginPct != 23.75 {
		t.Errorf("MarginPct = %v, want 23.75", p.MarginPct)
	}
	if !p.IsProfitable {
		t.Error("expected profitable")
	}
}

func TestEstimateProfit_CallerSourcing(t *testing.T) {
	cost := 900.0
	p := EstimateProfit(1000, &cost)
	if p.SourcingCost != 900 {
		t.Errorf("SourcingCost = %v, want 900", p.SourcingCost)
	}
	if p.Profit != -62.5 || p.IsProfitable {
		t.Errorf("Profit = %v profitable=%v, want -62.5 false", p.Profit, p.IsProfitable)
	}
}

func TestEstimateProfit_ZeroPrice(t *testing.T) {
	p := EstimateProfit(0, nil)
	if p.MarginPct != 0 || p.IsProfitable {
		t.Errorf("unexpected profit for zero price: %+v", p)
	}
}

func TestOpportunityScore(t *testing.T) {
	tests := []struct {
		sentiment float64
		reviews   int
		price     float64
		want      float64
	}{
		{0.5, 50, 2500, 50},
		{1, 1000, 10000, 100},
		{0, 0, 0, 0},
		{-3, -10, -100, 0},
		{0.875, 12, 1499, 47.6},
	}
	for _, tt := range tests {
		got := OpportunityScore(tt.sentiment, tt.reviews, tt.price)
		if got != tt.want {
			t.Errorf("OpportunityScore(%v, %d, %v) = %v, want %v", tt.sentiment, tt.reviews, tt.price, got, tt.want)
		}
	}
}

func TestCompetitionScore(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{0, 50}, {1, 85}, {4, 85}, {5, 65}, {9, 65}, {10, 40}, {19, 40}, {20, 20}, {200, 20},
	}
	for _, tt := range tests {
		if got := CompetitionScore(tt.count); got != tt.want {
			t.Errorf("CompetitionScore(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestForecastSeries(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		growth     float64
		confidence float64
	}{
		{"two points ratio", []float64{10, 11}, 10, 74},
		{"ratio clamped high", []float64{10, 12, 15}, 45, 76},
		{"zero first", []float64{0, 5, 6}, 5, 76},
		{"least squares", []float64{10, 11, 12, 13, 14}, 8.3, 80},
		{"declining", []float64{20, 18, 16, 14, 12}, -12.5, 80},
		{"clamped low", []float64{100, 50, 10, 5, 1}, -15, 80},
		{"zero mean", []float64{0, 0, 0, 0, 0}, 5, 80},
		{"confidence cap", make20(), 0, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ForecastSeries(tt.values, "id")
			if f.GrowthPct != tt.growth || f.ConfidencePct != tt.confidence {
				t.Errorf("got %+v, want growth=%v confidence=%v", f, tt.growth, tt.confidence)
			}
		})
	}
}

func make20() []float64 {
	v := make([]float64, 20)
	for i := range v {
		v[i] = 7
	}
	return v
}

func TestForecastSeries_BaselineIsStable(t *testing.T) {
	for _, values := range [][]float64{nil, {42}} {
		a := ForecastSeries(values, "Smart Watch|daraz")
		b := ForecastSeries(values, "Smart Watch|daraz")
		if a != b {
			t.Fatalf("baseline changed between calls: %+v vs %+v", a, b)
		}
		if a.GrowthPct < 3 || a.GrowthPct > 8 {
			t.Errorf("growth %v outside [3,8]", a.GrowthPct)
		}
		if a.ConfidencePct < 65 || a.ConfidencePct > 80 {
			t.Errorf("confidence %v outside [65,80]", a.ConfidencePct)
		}
	}
}

func TestSentiment(t *testing.T) {
	if got := Sentiment(""); got != 0.5 {
		t.Errorf("Sentiment(\"\") = %v", got)
	}
	if got := Sentiment("Unknown"); got != 0.5 {
		t.Errorf("Sentiment(Unknown) = %v", got)
	}
	if got := Sentiment("Plastic Bucket 10L"); got != 0.5 {
		t.Errorf("neutral title = %v, want 0.5", got)
	}
	if got := Sentiment("Best Premium Watch"); got != 0.875 {
		t.Errorf("positive title = %v, want 0.875", got)
	}
	if got := Sentiment("broken old fan"); got != 0.375 {
		t.Errorf("negative title = %v, want 0.375", got)
	}
	if neg := Sentiment("not good"); neg >= 0.5 {
		t.Errorf("negated title = %v, want < 0.5", neg)
	}
}

func TestSentiment_Bounded(t *testing.T) {
	titles := []string{
		"very very best best perfect excellent", "worst worst ugly fake", "extremely awesome",
		"not not not bad", "!!!", "12345", "Smart Watch Ultra 2 Original",
	}
	for _, title := range titles {
		s := Sentiment(title)
		if s < 0 || s > 1 {
			t.Errorf("Sentiment(%q) = %v outside [0,1]", title, s)
		}
	}
}

func TestSentimentLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.9, listing.LabelHighDemand},
		{0.71, listing.LabelHighDemand},
		{0.7, listing.LabelStableInterest},
		{0.51, listing.LabelStableInterest},
		{0.5, listing.LabelLowPotential},
		{0.1, listing.LabelLowPotential},
	}
	for _, tt := range tests {
		label, advice := SentimentLabel(tt.score)
		if label != tt.want || advice == "" {
			t.Errorf("SentimentLabel(%v) = (%q, %q), want %q", tt.score, label, advice, tt.want)
		}
	}
}

func TestEstimateMonthlySales(t *testing.T) {
	if got := EstimateMonthlySales(0, "a"); got != 5 {
		t.Errorf("zero reviews = %d, want 5", got)
	}
	got := EstimateMonthlySales(300, "a")
	if got < 800 || got > 1200 {
		t.Errorf("EstimateMonthlySales(300) = %d, want within [800,1200]", got)
	}
	if again := EstimateMonthlySales(300, "a"); again != got {
		t.Errorf("jitter not stable: %d vs %d", got, again)
	}
}

func TestSalesTrend(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	a := SalesTrend("Lamp|daraz", 10, 4, now)
	b := SalesTrend("Lamp|daraz", 10, 4, now)
	if len(a) != 14 {
		t.Fatalf("len = %d, want 14", len(a))
	}
	forecast := 0
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("series differs at %d: %+v vs %+v", i, a[i], b[i])
		}
		if a[i].Value < 5 {
			t.Errorf("point %d below floor: %v", i, a[i].Value)
		}
		if a[i].IsForecast {
			forecast++
		}
	}
	if forecast != 4 {
		t.Errorf("forecast points = %d, want 4", forecast)
	}
	if a[0].Label != "Feb 28" || a[9].Label != "Mar 09" || a[10].Label != "Mar 11" {
		t.Errorf("unexpected labels: %s %s %s", a[0].Label, a[9].Label, a[10].Label)
	}
}

func TestScore_Bounds(t *testing.T) {
	now := time.Now()
	var records []listing.Record
	for i := range 25 {
		records = append(records, listing.Record{
			Title:       fmt.Sprintf("Best wireless item %d", i),
			Price:       float64(i * 900),
			Platform:    "test",
			ReviewCount: i * 40,
		})
	}
	scored := ScoreAll(records, now)
	for _, r := range scored {
		if r.OpportunityScore < 0 || r.OpportunityScore > 100 {
			t.Errorf("%s: opportunity %v out of range", r.Title, r.OpportunityScore)
		}
		if r.SentimentScore < 0 || r.SentimentScore > 1 {
			t.Errorf("%s: sentiment %v out of range", r.Title, r.SentimentScore)
		}
		if r.CompetitionScore != 20 {
			t.Errorf("%s: competition %d, want 20 for 25 records", r.Title, r.CompetitionScore)
		}
		if r.Profit == nil || r.SentimentLabel == "" || len(r.SalesTrend) != 14 {
			t.Errorf("%s: derived fields missing: %+v", r.Title, r)
		}
		if r.GrowthPct < -15 || r.GrowthPct > 45 {
			t.Errorf("%s: growth %v out of range", r.Title, r.GrowthPct)
		}
	}
}
