package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/kalambet/marketscout/internal/listing"
)

// JSONAPI fetches listings from an HTTP endpoint that answers
// GET {url}?q=<keyword> with JSON.
type JSONAPI struct {
	client  *Client
	baseURL string
}

func NewJSONAPI(client *Client, baseURL string) *JSONAPI {
	return &JSONAPI{client: client, baseURL: baseURL}
}

func (j *JSONAPI) Fetch(ctx context.Context, keyword string) ([]listing.Raw, error) {
	u, err := url.Parse(j.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	params := u.Query()
	params.Set("q", keyword)
	u.RawQuery = params.Encode()

	resp, err := j.client.Get(ctx, u.String(), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return decodeListings(body)
}

// decodeListings accepts a bare JSON array or an object wrapping one under
// "results" or "listings".
func decodeListings(body []byte) ([]listing.Raw, error) {
	var raws []listing.Raw
	if err := json.Unmarshal(body, &raws); err == nil {
		return raws, nil
	}
	var wrapped struct {
		Results  []listing.Raw `json:"results"`
		Listings []listing.Raw `json:"listings"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding listings: %w", err)
	}
	if len(wrapped.Results) > 0 {
		return wrapped.Results, nil
	}
	return wrapped.Listings, nil
}
