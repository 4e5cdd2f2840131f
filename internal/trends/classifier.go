package trends

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/marketscout/internal/listing"
)

// Catalog is the slice of the store the classifier needs.
type Catalog interface {
	Products(ctx context.Context) []listing.Record
	Trends(ctx context.Context) []listing.Trend
	SaveTrend(ctx context.Context, t listing.Trend)
}

// Classifier maintains and serves the emerging trends collection.
type Classifier struct {
	catalog Catalog
	now     func() time.Time
	logger  *slog.Logger
}

func NewClassifier(catalog Catalog) *Classifier {
	return &Classifier{catalog: catalog, now: time.Now, logger: slog.Default()}
}

// GetTrends returns the stored trends classified for kind in the current month.
func (c *Classifier) GetTrends(ctx context.Context, kind string) Result {
	return Classify(c.catalog.Trends(ctx), kind, c.now().Month())
}

// Record saves every emerging record of a result set as a trend and returns
// how many qualified. Predictions qualify like any other record and keep
// their IsPrediction flag.
func (c *Classifier) Record(ctx context.Context, records []listing.Record) int {
	detected := c.now().UTC()
	n := 0
	for _, r := range records {
		if !IsEmerging(r) {
			continue
		}
		c.catalog.SaveTrend(ctx, listing.Trend{Record: r, TrendType: TypeEmerging, DetectedAt: detected})
		n++
	}
	return n
}

// Sweep scans the whole knowledge base and records every emerging product.
func (c *Classifier) Sweep(ctx context.Context) int {
	products := c.catalog.Products(ctx)
	n := c.Record(ctx, products)
	c.logger.Info("trend sweep done", "products", len(products), "emerging", n)
	return n
}
