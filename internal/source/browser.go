package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/kalambet/marketscout/internal/listing"
)

// Browser scrapes pages that only render their listings client-side. It
// drives a headless Chrome per call and applies the same selectors as HTML
// to the rendered DOM.
type Browser struct {
	urlTemplate string
	sel         Selectors
	settle      time.Duration
	execPath    string
}

// NewBrowser returns a Browser source. settle is how long to wait after
// navigation for client-side rendering; zero selects 3s.
func NewBrowser(urlTemplate string, sel Selectors, settle time.Duration) *Browser {
	if settle <= 0 {
		settle = 3 * time.Second
	}
	return &Browser{urlTemplate: urlTemplate, sel: sel, settle: settle, execPath: findChromeBinary()}
}

func (b *Browser) Fetch(ctx context.Context, keyword string) ([]listing.Raw, error) {
	pageURL := searchURL(b.urlTemplate, keyword)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgents[0]),
	)
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelTab()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(b.settle),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(b.settle/2),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing rendered HTML: %w", err)
	}
	base, _ := url.Parse(pageURL)
	return extractCards(doc, b.sel, base), nil
}

// findChromeBinary locates a Chrome or Chromium binary. An empty result
// lets chromedp use its own lookup.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}
	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
