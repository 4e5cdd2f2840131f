// Package seed bulk-loads raw listings into the knowledge base.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kalambet/marketscout/internal/listing"
	"github.com/kalambet/marketscout/internal/scoring"
)

// DefaultPlatform labels seeded records that do not name a platform.
const DefaultPlatform = "Seed"

// Catalog is the product side of the store.
type Catalog interface {
	Products(ctx context.Context) []listing.Record
	SaveProduct(ctx context.Context, r listing.Record)
}

// Result reports what a load did.
type Result struct {
	Loaded   int  `json:"loaded"`
	Rejected int  `json:"rejected"`
	Skipped  bool `json:"skipped"`
}

// Decode reads a JSON array of raw listings.
func Decode(r io.Reader) ([]listing.Raw, error) {
	var raws []listing.Raw
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decoding seed records: %w", err)
	}
	return raws, nil
}

// LoadFile decodes path and loads it with Load.
func LoadFile(ctx context.Context, catalog Catalog, path string, force bool) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	raws, err := Decode(f)
	if err != nil {
		return Result{}, err
	}
	return Load(ctx, catalog, raws, force), nil
}

// Load normalizes and scores raws and upserts them as products. It does
// nothing when the knowledge base already holds products, unless force is
// set. Records without a title or a readable price are rejected.
func Load(ctx context.Context, catalog Catalog, raws []listing.Raw, force bool) Result {
	if !force && len(catalog.Products(ctx)) > 0 {
		slog.Info("seed skipped, knowledge base not empty")
		return Result{Skipped: true}
	}

	var res Result
	records := make([]listing.Record, 0, len(raws))
	for _, raw := range raws {
		r, ok := listing.Normalize(raw, DefaultPlatform)
		if !ok {
			res.Rejected++
			continue
		}
		records = append(records, r)
	}
	for _, r := range scoring.ScoreAll(records, time.Now()) {
		if err := ctx.Err(); err != nil {
			slog.Warn("seed interrupted", "loaded", res.Loaded, "error", err)
			break
		}
		catalog.SaveProduct(ctx, r)
		res.Loaded++
	}
	slog.Info("seed complete", "loaded", res.Loaded, "rejected", res.Rejected)
	return res
}
