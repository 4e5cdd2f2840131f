// Package trends flags high-opportunity products and serves them as
// seasonal or daily/viral trend lists.
package trends

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/kalambet/marketscout/internal/listing"
)

// Trend kinds, badges and limits.
const (
	KindSeasonal = "seasonal"
	KindDaily    = "daily"

	TypeEmerging = "Emerging"

	BadgeSeasonal = "Seasonal Winner"
	BadgeViral    = "Daily Viral"

	ViralContext = "Viral/High-Velocity"

	MaxResults       = 15
	seasonalFallback = 10
	dailyFallback    = 15
	viralMinScore    = 60
)

// Result is a classified trend list.
type Result struct {
	Results       []listing.Trend `json:"results"`
	Count         int             `json:"count"`
	SeasonContext []string        `json:"seasonContext"`
}

// IsEmerging reports whether r qualifies as an emerging trend.
func IsEmerging(r listing.Record) bool {
	return r.OpportunityScore > 65 || (r.SentimentScore > 0.6 && r.OpportunityScore > 45)
}

// SeasonalKeywords returns the title keywords in season for month.
func SeasonalKeywords(month time.Month) []string {
	switch month {
	case time.November, time.December, time.January, time.February:
		return []string{"heater", "jacket", "hoodie", "coffee", "dryer", "cricket"}
	case time.March, time.April:
		return []string{"lawn", "fan", "ac", "sandal", "eid"}
	case time.May, time.June, time.July, time.August:
		return []string{"solar", "cooler", "t-shirt", "sunblock", "pool"}
	default:
		return []string{"wedding", "gift", "scent", "shawl"}
	}
}

func isSeasonal(title string, keywords []string) bool {
	title = strings.ToLower(title)
	return slices.ContainsFunc(keywords, func(k string) bool { return strings.Contains(title, k) })
}

// Classify filters trends for kind in the given month. Any kind other than
// "seasonal" is treated as daily. When nothing matches, the first
// unfiltered trends are returned so the list is never empty while trends
// exist. Results are sorted by opportunity score, highest first.
func Classify(all []listing.Trend, kind string, month time.Month) Result {
	keywords := SeasonalKeywords(month)

	var picked []listing.Trend
	var seasonCtx []string
	if kind == KindSeasonal {
		seasonCtx = keywords
		for _, t := range all {
			if isSeasonal(t.Title, keywords) {
				t.TrendBadge = BadgeSeasonal
				picked = append(picked, t)
			}
		}
		if len(picked) == 0 {
			picked = slices.Clone(all[:min(len(all), seasonalFallback)])
		}
	} else {
		seasonCtx = []string{ViralContext}
		for _, t := range all {
			if !isSeasonal(t.Title, keywords) && t.OpportunityScore > viralMinScore {
				t.TrendBadge = BadgeViral
				picked = append(picked, t)
			}
		}
		if len(picked) == 0 {
			picked = slices.Clone(all[:min(len(all), dailyFallback)])
		}
	}

	slices.SortStableFunc(picked, func(a, b listing.Trend) int {
		return cmp.Compare(b.OpportunityScore, a.OpportunityScore)
	})
	if len(picked) > MaxResults {
		picked = picked[:MaxResults]
	}
	if picked == nil {
		picked = []listing.Trend{}
	}
	return Result{Results: picked, Count: len(picked), SeasonContext: seasonCtx}
}
