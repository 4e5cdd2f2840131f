package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// ClientOptions configures the shared HTTP client.
type ClientOptions struct {
	ProxyURL     string
	MinDelay     time.Duration // per-host politeness delay
	MaxDelay     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.MaxDelay < o.MinDelay {
		o.MaxDelay = o.MinDelay
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryBackoff == 0 {
		o.RetryBackoff = 2 * time.Second
	}
	return o
}

// Client is the HTTP client shared by the http-json and html sources. It
// rotates user agents, spaces out requests to the same host and retries
// 429 and 503 responses with exponential backoff.
type Client struct {
	inner   *http.Client
	opts    ClientOptions
	logger  *slog.Logger
	mu      sync.Mutex
	lastReq map[string]time.Time
}

// NewClient creates a Client with the given options.
func NewClient(opts ClientOptions) (*Client, error) {
	opts = opts.withDefaults()

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("source: invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("source: creating cookie jar: %w", err)
	}

	return &Client{
		inner:   &http.Client{Transport: transport, Jar: jar},
		opts:    opts,
		logger:  slog.Default(),
		lastReq: make(map[string]time.Time),
	}, nil
}

// Get issues a GET for rawURL with browser-like headers.
func (c *Client) Get(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", accept)
	return c.Do(req)
}

// Do executes req with header rotation, rate limiting and retry.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)

	if err := c.rateLimit(req.Context(), req.URL.Host); err != nil {
		return nil, err
	}

	for attempt := range c.opts.MaxRetries {
		resp, err := c.inner.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
			return resp, nil
		}
		resp.Body.Close()

		backoff := time.Duration(1<<uint(attempt)) * c.opts.RetryBackoff
		c.logger.Warn("source throttled, backing off",
			"host", req.URL.Host, "status", resp.StatusCode, "backoff", backoff,
			"attempt", attempt+1, "max_attempts", c.opts.MaxRetries)

		select {
		case <-time.After(backoff):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	return nil, fmt.Errorf("%s still throttling after %d attempts", req.URL.Host, c.opts.MaxRetries)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

func (c *Client) rateLimit(ctx context.Context, host string) error {
	c.mu.Lock()
	last, ok := c.lastReq[host]
	c.lastReq[host] = time.Now()
	c.mu.Unlock()

	if !ok || c.opts.MaxDelay == 0 {
		return nil
	}

	delay := c.opts.MinDelay
	if spread := c.opts.MaxDelay - c.opts.MinDelay; spread > 0 {
		delay += rand.N(spread)
	}
	if wait := delay - time.Since(last); wait > 0 {
		c.logger.Debug("rate limit: waiting", "host", host, "wait", wait.Round(time.Millisecond))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	c.lastReq[host] = time.Now()
	c.mu.Unlock()
	return nil
}
