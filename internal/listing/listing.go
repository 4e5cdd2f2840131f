package listing

import (
	"strings"
	"time"
)

// Sentiment labels assigned by the scoring engine.
const (
	LabelHighDemand     = "High Demand"
	LabelStableInterest = "Stable Interest"
	LabelLowPotential   = "Low Potential"
)

// Record is a product offer merged from one of the sources.
type Record struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Platform    string  `json:"platform"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Link        string  `json:"link,omitempty"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"reviewCount"`

	SentimentScore        float64      `json:"sentimentScore"`
	SentimentLabel        string       `json:"sentimentLabel,omitempty"`
	Advice                string       `json:"advice,omitempty"`
	OpportunityScore      float64      `json:"opportunityScore"`
	SalesTrend            []TrendPoint `json:"salesTrend,omitempty"`
	GrowthPct             float64      `json:"growthPct"`
	ConfidencePct         float64      `json:"confidencePct"`
	EstimatedMonthlySales int          `json:"estimatedMonthlySales"`
	CompetitionScore      int          `json:"competitionScore"`
	Profit                *Profit      `json:"profitEstimate,omitempty"`
	IsPrediction          bool         `json:"isPrediction,omitempty"`
}

// TrendPoint is one day of a sales series.
type TrendPoint struct {
	Label      string  `json:"label"`
	Value      float64 `json:"value"`
	IsForecast bool    `json:"isForecast"`
}

// Profit is the resale estimate for a listing at its retail price.
type Profit struct {
	RetailPrice  float64 `json:"retailPrice"`
	SourcingCost float64 `json:"sourcingCost"`
	Fees         float64 `json:"fees"`
	Profit       float64 `json:"profit"`
	MarginPct    float64 `json:"marginPct"`
	IsProfitable bool    `json:"isProfitable"`
}

// Trend is a record flagged by the trend classifier.
type Trend struct {
	Record
	TrendType  string    `json:"trendType"`
	DetectedAt time.Time `json:"detectedAt"`
	TrendBadge string    `json:"trendBadge,omitempty"`
}

// Persistable reports whether r may be written to the knowledge base.
func (r Record) Persistable() bool {
	return strings.TrimSpace(r.Title) != "" && r.Price > 0
}

// Key returns the persistence identity of r: the (title, platform) pair.
func (r Record) Key() string {
	return Key(r.Title, r.Platform)
}

// Key joins title and platform into a single store key.
func Key(title, platform string) string {
	return title + "|" + platform
}

// NormalizeQuery lower-cases and trims a search keyword.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
