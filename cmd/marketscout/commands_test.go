package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/marketscout/internal/config"
	"github.com/kalambet/marketscout/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// useTestClient points every command at ts for the duration of the test.
func useTestClient(t *testing.T, ts *testServer) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = old })
}

var ctx = context.Background()

func TestSearchCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /search": `{"query":"power bank","results":[{"id":"p1","title":"Power Bank 20000mAh","price":4999,"platform":"Daraz","opportunityScore":71.5}],"source":"Live Web Search","count":1}`,
	})

	res, err := runSearch(ctx, ts.client(), "power bank", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if got := ts.requests[0].Path; got != "/search?limit=5&q=power+bank" {
		t.Errorf("path = %q", got)
	}
	if res.Source != "Live Web Search" || len(res.Results) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Results[0].OpportunityScore != 71.5 {
		t.Errorf("score = %v", res.Results[0].OpportunityScore)
	}
}

func TestSearchCommand_NoLimit(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /search": `{"query":"x","results":[],"source":"AI Prediction","isPrediction":true}`,
	})

	res, err := runSearch(ctx, ts.client(), "x", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/search?q=x" {
		t.Errorf("path = %q, limit should be omitted", ts.requests[0].Path)
	}
	if !res.IsPrediction {
		t.Error("expected prediction flag")
	}
}

func TestSearchCommand_RunE(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /search": `{"query":"tripod","results":[],"source":"Cache"}`,
	})
	useTestClient(t, ts)

	if err := searchCmd.RunE(searchCmd, []string{"ring", "light"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(ts.requests[0].Path, "q=ring+light") {
		t.Errorf("path = %q, want joined keyword", ts.requests[0].Path)
	}

	if err := searchCmd.RunE(searchCmd, []string{"  "}); err == nil {
		t.Error("expected error for blank keyword")
	}
}

func TestTrendsCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /trends": `{"results":[{"title":"Smart Watch","price":8999,"opportunityScore":72,"trendType":"daily","trendBadge":"HOT"}],"count":1,"seasonContext":["Winter"]}`,
	})
	useTestClient(t, ts)

	if err := trendsCmd.Flags().Set("type", "seasonal"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { trendsCmd.Flags().Set("type", "daily") })

	if err := trendsCmd.RunE(trendsCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/trends?type=seasonal" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
}

func TestRefreshCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /trends/refresh": `{"started":true,"alreadyRunning":false,"message":"refresh started"}`,
	})
	useTestClient(t, ts)

	if err := refreshCmd.RunE(refreshCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := ts.requests[0]
	if req.Method != "POST" || req.Auth != "Bearer test-token" {
		t.Errorf("request = %+v", req)
	}
}

func TestWaitForRefresh(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		running := polls.Add(1) < 3
		json.NewEncoder(w).Encode(map[string]any{
			"lastRun": time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC),
			"status":  "Healthy",
			"running": running,
		})
	}))
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, token: "t", httpClient: srv.Client()}
	st, err := waitForRefresh(ctx, client, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Running || st.Status != "Healthy" {
		t.Errorf("status = %+v", st)
	}
	if polls.Load() != 3 {
		t.Errorf("polls = %d, want 3", polls.Load())
	}
}

func TestWaitForRefresh_Cancelled(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /status": `{"lastRun":null,"status":"Idle","running":true}`,
	})

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := waitForRefresh(cctx, ts.client(), 5*time.Millisecond); err == nil {
		t.Fatal("expected error when the context ends")
	}
}

func TestWatchlistAdd(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /watchlist": `{"id":"w-1","title":"Gaming Mouse","price":2499}`,
	})
	useTestClient(t, ts)

	watchlistAddCmd.Flags().Set("price", "2499")
	watchlistAddCmd.Flags().Set("platform", "Daraz")
	t.Cleanup(func() {
		watchlistAddCmd.Flags().Set("price", "0")
		watchlistAddCmd.Flags().Set("platform", "")
	})

	if err := watchlistAddCmd.RunE(watchlistAddCmd, []string{"Gaming", "Mouse"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := ts.requests[0]
	if req.Auth != "Bearer test-token" {
		t.Errorf("auth = %q", req.Auth)
	}
	var item storage.WatchItem
	if err := json.Unmarshal([]byte(req.Body), &item); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if item.Title != "Gaming Mouse" || item.Price != 2499 || item.Platform != "Daraz" {
		t.Errorf("item = %+v", item)
	}
}

func TestWatchlistRemove(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /watchlist/w-1": `{"status":"deleted"}`,
	})
	useTestClient(t, ts)

	if err := watchlistRemoveCmd.RunE(watchlistRemoveCmd, []string{"w-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Method != "DELETE" {
		t.Errorf("method = %q", ts.requests[0].Method)
	}

	err := watchlistRemoveCmd.RunE(watchlistRemoveCmd, []string{"missing"})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want a 404", err)
	}
}

func TestSeedCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /seed": `{"loaded":2,"rejected":1,"skipped":false}`,
	})
	useTestClient(t, ts)

	path := filepath.Join(t.TempDir(), "seed.json")
	data := `[{"title":"Wireless Earbuds","price":"Rs. 2,499"},{"name":"Tripod","current_price":1500},{"title":"","price":"0"}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	seedCmd.Flags().Set("file", path)
	seedCmd.Flags().Set("force", "true")
	t.Cleanup(func() {
		seedCmd.Flags().Set("file", "")
		seedCmd.Flags().Set("force", "false")
	})

	if err := seedCmd.RunE(seedCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := ts.requests[0]
	if req.Path != "/seed?force=true" {
		t.Errorf("path = %q", req.Path)
	}
	if req.Body != data {
		t.Errorf("body should be forwarded untouched, got %q", req.Body)
	}
}

func TestSeedCommand_Errors(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	useTestClient(t, ts)

	if err := seedCmd.RunE(seedCmd, nil); err == nil {
		t.Error("expected error without --file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte(`{"title":"not an array"}`), 0o644)
	seedCmd.Flags().Set("file", path)
	t.Cleanup(func() { seedCmd.Flags().Set("file", "") })

	if err := seedCmd.RunE(seedCmd, nil); err == nil {
		t.Error("expected decode error")
	}
	if len(ts.requests) != 0 {
		t.Errorf("no request should be sent, got %d", len(ts.requests))
	}
}

func TestDetailsCommand_URLEncoding(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /details/a/b": `{"product":{"title":"Tripod"},"found":true,"analysis":{"forecast":{"growthPct":12.5,"confidencePct":80},"sentiment":{"label":"High Demand"},"checklist":["Verify supplier"]}}`,
	})
	useTestClient(t, ts)

	if err := detailsCmd.RunE(detailsCmd, []string{"a/b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/details/a%2Fb" {
		t.Errorf("path = %q, want escaped id", ts.requests[0].Path)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	resp, err := ts.client().get(ctx, "/nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want it to contain 404", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestFormatting(t *testing.T) {
	if got := formatPrice(2499); got != "Rs. 2,499" {
		t.Errorf("formatPrice = %q", got)
	}
	if got := formatCount(1250000); got != "1,250,000" {
		t.Errorf("formatCount = %q", got)
	}
	for score, want := range map[float64]string{80: colorGreen, 50: colorYellow, 20: colorRed} {
		if got := scoreColor(score); got != want {
			t.Errorf("scoreColor(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("MARKETSCOUT_DOTENV_CHECK", "")
	os.Unsetenv("MARKETSCOUT_DOTENV_CHECK")

	path := filepath.Join(t.TempDir(), "test.env")
	os.WriteFile(path, []byte("MARKETSCOUT_DOTENV_CHECK=from-file\n"), 0o644)

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("MARKETSCOUT_DOTENV_CHECK"); got != "from-file" {
		t.Errorf("env value = %q, want from-file", got)
	}

	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for an explicit missing file")
	}

	t.Chdir(t.TempDir())
	if err := loadDotEnv(""); err != nil {
		t.Errorf("missing default .env should be ignored, got %v", err)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 8000
	cfg.Server.APIToken = "secret"

	var port string
	for _, k := range config.ShowAll(cfg) {
		if k.Key == "server.api_token" || k.Value == "secret" {
			t.Errorf("secret key shown: %+v", k)
		}
		if k.Key == "server.port" {
			port = k.Value
		}
	}
	if port != "8000" {
		t.Errorf("server.port = %q, want 8000", port)
	}
}

func TestRunMigrate(t *testing.T) {
	primary, local := storage.NewMemory(), storage.NewMemory()
	local.Upsert(ctx, storage.Products, "Fan|Daraz", []byte(`{"title":"Fan"}`))
	local.Upsert(ctx, storage.Trends, "Fan|Daraz", []byte(`{"title":"Fan"}`))

	if err := runMigrate(ctx, primary, local, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs, _ := primary.GetAll(ctx, storage.Products); len(docs) != 1 {
		t.Errorf("primary products = %d, want 1", len(docs))
	}
	if docs, _ := local.GetAll(ctx, storage.Trends); len(docs) != 0 {
		t.Errorf("local trends should be pruned, got %d", len(docs))
	}
}
