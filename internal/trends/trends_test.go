package trends

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/marketscout/internal/listing"
	"github.com/kalambet/marketscout/internal/storage"
)

func trend(title string, pos float64) listing.Trend {
	return listing.Trend{
		Record:    listing.Record{ID: title, Title: title, Price: 1000, Platform: "Daraz", OpportunityScore: pos},
		TrendType: TypeEmerging,
	}
}

func TestIsEmerging(t *testing.T) {
	tests := []struct {
		pos, sentiment float64
		want           bool
	}{
		{66, 0.1, true},
		{65, 0.5, false},
		{46, 0.61, true},
		{45, 0.9, false},
		{50, 0.6, false},
	}
	for _, tt := range tests {
		r := listing.Record{OpportunityScore: tt.pos, SentimentScore: tt.sentiment}
		if got := IsEmerging(r); got != tt.want {
			t.Errorf("IsEmerging(pos=%v, sent=%v) = %v, want %v", tt.pos, tt.sentiment, got, tt.want)
		}
	}
}

func TestSeasonalKeywords(t *testing.T) {
	tests := []struct {
		month time.Month
		has   string
	}{
		{time.December, "heater"},
		{time.January, "cricket"},
		{time.March, "lawn"},
		{time.July, "solar"},
		{time.October, "wedding"},
		{time.September, "shawl"},
	}
	for _, tt := range tests {
		if !slices.Contains(SeasonalKeywords(tt.month), tt.has) {
			t.Errorf("SeasonalKeywords(%v) missing %q", tt.month, tt.has)
		}
	}
}

func winterTrends() []listing.Trend {
	return []listing.Trend{
		trend("Smart Watch Pro", 80),
		trend("Electric Heater 2000W", 70),
		trend("Wireless Earbuds", 58),
		trend("Winter Jacket Men", 90),
		trend("Gaming Mouse RGB", 62),
		trend("Cold Brew Coffee Maker", 40),
	}
}

func TestClassifySeasonalWinter(t *testing.T) {
	for _, month := range []time.Month{time.December, time.January} {
		res := Classify(winterTrends(), KindSeasonal, month)

		want := []string{"Winter Jacket Men", "Electric Heater 2000W", "Cold Brew Coffee Maker"}
		if res.Count != len(want) {
			t.Fatalf("%v: count = %d, want %d", month, res.Count, len(want))
		}
		winter := SeasonalKeywords(month)
		for i, tr := range res.Results {
			if tr.Title != want[i] {
				t.Errorf("%v: result %d = %q, want %q", month, i, tr.Title, want[i])
			}
			if !isSeasonal(tr.Title, winter) {
				t.Errorf("%v: non-seasonal title %q", month, tr.Title)
			}
			if tr.TrendBadge != BadgeSeasonal {
				t.Errorf("badge = %q", tr.TrendBadge)
			}
		}
		if !slices.Equal(res.SeasonContext, winter) {
			t.Errorf("season context = %v", res.SeasonContext)
		}
	}
}

func TestClassifyDaily(t *testing.T) {
	res := Classify(winterTrends(), KindDaily, time.December)

	want := []string{"Smart Watch Pro", "Gaming Mouse RGB"}
	if res.Count != len(want) {
		t.Fatalf("count = %d, want %d: %+v", res.Count, len(want), res.Results)
	}
	for i, tr := range res.Results {
		if tr.Title != want[i] {
			t.Errorf("result %d = %q, want %q", i, tr.Title, want[i])
		}
		if tr.TrendBadge != BadgeViral {
			t.Errorf("badge = %q", tr.TrendBadge)
		}
	}
	if !slices.Equal(res.SeasonContext, []string{ViralContext}) {
		t.Errorf("season context = %v", res.SeasonContext)
	}

	// Unknown kinds are daily.
	if other := Classify(winterTrends(), "weekly", time.December); other.Count != res.Count {
		t.Errorf("unknown kind count = %d, want %d", other.Count, res.Count)
	}
}

func TestClassifyFallbacks(t *testing.T) {
	var all []listing.Trend
	for i := range 20 {
		all = append(all, trend("Plain Item "+strings.Repeat("x", i), float64(i)))
	}

	seasonal := Classify(all, KindSeasonal, time.December)
	if seasonal.Count != 10 {
		t.Errorf("seasonal fallback count = %d, want 10", seasonal.Count)
	}
	if seasonal.Results[0].OpportunityScore != 9 {
		t.Errorf("fallback not sorted by score: first = %v", seasonal.Results[0].OpportunityScore)
	}
	if seasonal.Results[0].TrendBadge != "" {
		t.Errorf("fallback records should not get a badge, got %q", seasonal.Results[0].TrendBadge)
	}

	daily := Classify(all, KindDaily, time.December)
	if daily.Count != 15 {
		t.Errorf("daily fallback count = %d, want 15", daily.Count)
	}
	if daily.Results[0].OpportunityScore != 14 {
		t.Errorf("daily fallback first = %v, want 14", daily.Results[0].OpportunityScore)
	}
}

func TestClassifyTruncatesAndHandlesEmpty(t *testing.T) {
	var all []listing.Trend
	for i := range 30 {
		all = append(all, trend("Viral Gadget", float64(61+i)))
	}
	res := Classify(all, KindDaily, time.October)
	if res.Count != MaxResults || len(res.Results) != MaxResults {
		t.Errorf("count = %d, want %d", res.Count, MaxResults)
	}
	if res.Results[0].OpportunityScore != 90 {
		t.Errorf("first = %v, want highest score", res.Results[0].OpportunityScore)
	}

	empty := Classify(nil, KindSeasonal, time.October)
	if empty.Count != 0 || empty.Results == nil {
		t.Errorf("empty input = %+v, want non-nil empty results", empty)
	}
}

func TestClassifierRecordAndSweep(t *testing.T) {
	ctx := context.Background()
	catalog := storage.NewCatalog(storage.NewMemory())
	c := NewClassifier(catalog)
	c.now = func() time.Time { return time.Date(2026, 12, 5, 3, 0, 0, 0, time.UTC) }

	catalog.SaveProduct(ctx, listing.Record{Title: "Oil Heater", Price: 9000, Platform: "Daraz", OpportunityScore: 72})
	catalog.SaveProduct(ctx, listing.Record{Title: "Plain Cable", Price: 200, Platform: "Daraz", OpportunityScore: 30})

	n := c.Record(ctx, []listing.Record{
		{Title: "Predicted Heater (High Potential SKU)", Price: 3000, Platform: "AI Forecast", OpportunityScore: 85.5, IsPrediction: true},
	})
	if n != 1 {
		t.Errorf("Record stored %d trends, want the emerging prediction", n)
	}

	if got := c.Sweep(ctx); got != 1 {
		t.Errorf("Sweep found %d emerging, want 1", got)
	}
	// A second sweep upserts rather than duplicating.
	c.Sweep(ctx)

	res := c.GetTrends(ctx, KindSeasonal)
	if res.Count != 2 || res.Results[0].Title != "Predicted Heater (High Potential SKU)" || res.Results[1].Title != "Oil Heater" {
		t.Fatalf("unexpected trends: %+v", res)
	}
	if !res.Results[0].IsPrediction {
		t.Error("prediction flag lost on the stored trend")
	}
	tr := res.Results[1]
	if tr.TrendType != TypeEmerging || tr.DetectedAt.IsZero() || tr.TrendBadge != BadgeSeasonal {
		t.Errorf("unexpected trend fields: %+v", tr)
	}
}
