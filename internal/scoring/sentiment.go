package scoring

import (
	"strings"
	"unicode"

	"github.com/kalambet/marketscout/internal/listing"
)

// polarity is a small product-title lexicon in [-1,1].
var polarity = map[string]float64{
	"best": 1.0, "perfect": 1.0, "excellent": 1.0, "amazing": 0.6, "awesome": 1.0,
	"great": 0.8, "good": 0.7, "premium": 0.5, "original": 0.375, "genuine": 0.4,
	"new": 0.136, "latest": 0.5, "smart": 0.214, "super": 0.333, "high": 0.16,
	"quality": 0.3, "durable": 0.4, "stylish": 0.5, "beautiful": 0.85, "elegant": 0.5,
	"comfortable": 0.4, "soft": 0.1, "fast": 0.2, "powerful": 0.3, "strong": 0.433,
	"portable": 0.2, "wireless": 0.1, "luxury": 0.5, "pro": 0.2, "ultra": 0.3,
	"fresh": 0.3, "easy": 0.433, "free": 0.4, "official": 0.2, "popular": 0.6,
	"cheap": 0.4, "affordable": 0.3, "waterproof": 0.2, "lightweight": 0.2,
	"bad": -0.7, "poor": -0.4, "worst": -1.0, "cheap-looking": -0.5, "fake": -0.5,
	"broken": -0.4, "used": -0.1, "old": -0.1, "slow": -0.3, "weak": -0.375,
	"heavy": -0.2, "damaged": -0.5, "defective": -0.6, "refurbished": -0.1,
	"replica": -0.3, "copy": -0.2, "small": -0.25, "noisy": -0.4, "ugly": -0.7,
}

var intensifiers = map[string]float64{
	"very": 1.3, "extremely": 1.5, "highly": 1.3, "really": 1.2, "most": 1.3,
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "without": true, "non": true,
}

// Polarity returns the mean lexical polarity of text in [-1,1]. Text with
// no known words is 0.
func Polarity(text string) float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	var sum float64
	var hits int
	boost, negate := 1.0, false
	for _, w := range words {
		if negations[w] {
			negate = true
			continue
		}
		if m, ok := intensifiers[w]; ok {
			boost = m
			continue
		}
		p, ok := polarity[w]
		if !ok {
			continue
		}
		p *= boost
		if negate {
			p *= -0.5
		}
		sum += clamp(p, -1, 1)
		hits++
		boost, negate = 1.0, false
	}
	if hits == 0 {
		return 0
	}
	return clamp(sum/float64(hits), -1, 1)
}

// Sentiment maps title polarity from [-1,1] onto [0,1]. Empty or "Unknown"
// text is neutral (0.5).
func Sentiment(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" || text == "Unknown" {
		return 0.5
	}
	return clamp((Polarity(text)+1)/2, 0, 1)
}

// SentimentLabel returns the demand label and advisory line for a score.
func SentimentLabel(score float64) (label, advice string) {
	switch {
	case score > 0.7:
		return listing.LabelHighDemand, "Perfect for launching - Top consumer choice."
	case score > 0.5:
		return listing.LabelStableInterest, "Safe bet with consistent middle-market interest."
	default:
		return listing.LabelLowPotential, "High competition or low current interest."
	}
}
