package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kalambet/marketscout/internal/listing"
)

// Selectors locate listing cards and their fields in a search results page.
// Field selectors are relative to Item. Link and Image read the href and src
// attributes (data-src as a fallback for lazy images).
type Selectors struct {
	Item    string `json:"item"`
	Title   string `json:"title"`
	Price   string `json:"price"`
	Link    string `json:"link,omitempty"`
	Image   string `json:"image,omitempty"`
	Rating  string `json:"rating,omitempty"`
	Reviews string `json:"reviews,omitempty"`
}

func (s Selectors) validate() error {
	if s.Item == "" || s.Title == "" || s.Price == "" {
		return fmt.Errorf("selectors need item, title and price")
	}
	return nil
}

// searchURL substitutes the escaped keyword into a template containing {query}.
func searchURL(template, keyword string) string {
	return strings.ReplaceAll(template, "{query}", url.QueryEscape(keyword))
}

// HTML scrapes a server-rendered search page.
type HTML struct {
	client      *Client
	urlTemplate string
	sel         Selectors
}

func NewHTML(client *Client, urlTemplate string, sel Selectors) *HTML {
	return &HTML{client: client, urlTemplate: urlTemplate, sel: sel}
}

func (h *HTML) Fetch(ctx context.Context, keyword string) ([]listing.Raw, error) {
	pageURL := searchURL(h.urlTemplate, keyword)
	resp, err := h.client.Get(ctx, pageURL, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return extractCards(doc, h.sel, resp.Request.URL), nil
}

// extractCards reads one Raw per Item match. Cards without a title are skipped.
func extractCards(doc *goquery.Document, sel Selectors, base *url.URL) []listing.Raw {
	var raws []listing.Raw
	doc.Find(sel.Item).Each(func(_ int, s *goquery.Selection) {
		title := text(s, sel.Title)
		if title == "" {
			return
		}
		raw := listing.Raw{
			Title:   title,
			Price:   text(s, sel.Price),
			Rating:  text(s, sel.Rating),
			Reviews: text(s, sel.Reviews),
		}
		if sel.Link != "" {
			if href, ok := s.Find(sel.Link).First().Attr("href"); ok {
				raw.Link = resolve(base, href)
			}
		}
		if sel.Image != "" {
			img := s.Find(sel.Image).First()
			src, ok := img.Attr("src")
			if !ok || src == "" || strings.HasPrefix(src, "data:") {
				src, _ = img.Attr("data-src")
			}
			raw.Image = src
		}
		raws = append(raws, raw)
	})
	return raws
}

func text(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(s.Find(selector).First().Text()), " ")
}

func resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
