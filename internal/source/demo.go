package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kalambet/marketscout/internal/listing"
)

var demoPatterns = []string{
	"%s Pro Max",
	"Premium %s with Warranty",
	"Budget %s",
	"Best Selling %s Combo Pack",
	"Original %s 2026 Edition",
	"Mini Portable %s",
}

// Demo generates plausible listings offline. The same keyword and platform
// always produce the same listings.
type Demo struct {
	platform string
}

func NewDemo(platform string) *Demo {
	return &Demo{platform: platform}
}

func (d *Demo) Fetch(ctx context.Context, keyword string) ([]listing.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := fnv.New64a()
	h.Write([]byte(d.platform + "|" + listing.NormalizeQuery(keyword)))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed>>1))

	name := cases.Title(language.English).String(listing.NormalizeQuery(keyword))
	n := 3 + rng.IntN(len(demoPatterns)-2)
	raws := make([]listing.Raw, 0, n)
	for i := range n {
		title := fmt.Sprintf(demoPatterns[i], name)
		raws = append(raws, listing.Raw{
			ID:       fmt.Sprintf("demo_%x_%d", seed&0xffffff, i),
			Title:    title,
			Price:    "Rs. " + strconv.Itoa(500+rng.IntN(9500)),
			Platform: d.platform,
			Image:    "//images.example.com/demo/" + strconv.Itoa(i) + ".jpg",
			Rating:   strconv.FormatFloat(3+rng.Float64()*2, 'f', 1, 64),
			Reviews:  "(" + strconv.Itoa(rng.IntN(400)) + ")",
		})
	}
	return raws, nil
}
