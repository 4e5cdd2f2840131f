package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/marketscout/internal/config"
	"github.com/kalambet/marketscout/internal/insights"
	"github.com/kalambet/marketscout/internal/refresh"
	"github.com/kalambet/marketscout/internal/resolve"
	"github.com/kalambet/marketscout/internal/seed"
	"github.com/kalambet/marketscout/internal/storage"
	"github.com/kalambet/marketscout/internal/trends"
)

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search marketplaces for a keyword",
	Long: `Search marketplaces for a keyword. Results always come back: from a
verified override, the cache, the live sources, the knowledge base or, as
a last resort, a generated forecast.

Examples:
  marketscout search "wireless earbuds"
  marketscout search tripod --limit 5 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("keyword must not be blank")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := runSearch(cmdContext(cmd), client, query, limit)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(res)
		}
		printSearch(res)
		return nil
	},
}

func runSearch(ctx context.Context, client *apiClient, query string, limit int) (resolve.Result, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	resp, err := client.get(ctx, "/search?"+q.Encode())
	if err != nil {
		return resolve.Result{}, err
	}
	var res resolve.Result
	if err := decodeJSON(resp, &res); err != nil {
		return resolve.Result{}, err
	}
	return res, nil
}

func printSearch(res resolve.Result) {
	printStep("%s results for %q (%s)", formatCount(len(res.Results)), res.Query, res.Source)
	if res.Note != "" {
		printWarning("%s", res.Note)
	}
	for _, r := range res.Results {
		score := colorize(scoreColor(r.OpportunityScore), fmt.Sprintf("%5.1f", r.OpportunityScore))
		fmt.Printf("  %s  %-12s %12s  %s\n", score, r.Platform, formatPrice(r.Price), r.Title)
	}
}

func init() {
	searchCmd.Flags().Int("limit", 0, "maximum number of results (0 = all)")
	searchCmd.Flags().Bool("json", false, "print the raw JSON response")
}

// --- trends ---

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "List emerging products",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("type")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmdContext(cmd), "/trends?"+url.Values{"type": {kind}}.Encode())
		if err != nil {
			return err
		}
		var res trends.Result
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		printStep("%d %s trends", res.Count, kind)
		if len(res.SeasonContext) > 0 {
			printStatus("Season", "%s", strings.Join(res.SeasonContext, ", "))
		}
		for _, t := range res.Results {
			badge := ""
			if t.TrendBadge != "" {
				badge = colorize(colorCyan, "["+t.TrendBadge+"] ")
			}
			fmt.Printf("  %5.1f  %s%s (%s)\n", t.OpportunityScore, badge, t.Title, formatPrice(t.Price))
		}
		return nil
	},
}

func init() {
	trendsCmd.Flags().String("type", "daily", "daily or seasonal")
}

// --- refresh ---

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Trigger a background refresh of the niche list",
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")
		ctx := cmdContext(cmd)

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(ctx, "/trends/refresh", nil)
		if err != nil {
			return err
		}
		var res refresh.TriggerResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if res.AlreadyRunning {
			printWarning("A refresh is already running")
		} else {
			printSuccess("Refresh started")
		}
		if !wait {
			return nil
		}

		st, err := waitForRefresh(ctx, client, 2*time.Second)
		if err != nil {
			return err
		}
		printRunStatus(st)
		return nil
	},
}

// waitForRefresh polls /status until no refresh is running.
func waitForRefresh(ctx context.Context, client *apiClient, every time.Duration) (refresh.Status, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		resp, err := client.get(ctx, "/status")
		if err != nil {
			return refresh.Status{}, err
		}
		var st refresh.Status
		if err := decodeJSON(resp, &st); err != nil {
			return refresh.Status{}, err
		}
		if !st.Running {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	refreshCmd.Flags().Bool("wait", false, "wait for the refresh to finish")
}

// --- stats / recommend / details ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base totals and trending keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(ctx, "/market-stats")
		if err != nil {
			return err
		}
		var st insights.Stats
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}
		printStatus("Products", "%s", formatCount(st.TotalProducts))
		printStatus("Avg opportunity", "%.1f", st.AvgOpportunityScore)
		printStatus("Emerging trends", "%s", formatCount(st.EmergingTrends))
		printStatus("Cached queries", "%s", formatCount(st.CachedQueries))
		printStatus("Sources", "%d", st.ActiveSources)
		printStatus("Store", "%s", st.StoreMode)
		printStatus("Sync", "%s %s", st.SyncStatus, st.LastSync)

		resp, err = client.get(ctx, "/analytics/keywords")
		if err != nil {
			return err
		}
		var kws []insights.Keyword
		if err := decodeJSON(resp, &kws); err != nil {
			return err
		}
		printStep("Trending keywords")
		for _, k := range kws {
			fmt.Printf("  %-24s %s\n", k.Keyword, k.Volume)
		}
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend products for a budget and category",
	RunE: func(cmd *cobra.Command, args []string) error {
		budget, _ := cmd.Flags().GetString("budget")
		category, _ := cmd.Flags().GetString("category")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		q := url.Values{"budget": {budget}, "category": {category}}
		resp, err := client.get(cmdContext(cmd), "/recommendations?"+q.Encode())
		if err != nil {
			return err
		}
		var rec insights.Recommendation
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}
		printStep("%d recommendations for %s", len(rec.Results), rec.Query)
		for _, r := range rec.Results {
			fmt.Printf("  %5.1f  %12s  %s\n", r.RankScore, formatPrice(r.Price), r.Title)
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().String("budget", "medium", "low, medium or high")
	recommendCmd.Flags().String("category", "electronics", "electronics, home, fashion or any keyword")
}

var detailsCmd = &cobra.Command{
	Use:   "details <id>",
	Short: "Show sales history, forecast and resale analysis for a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmdContext(cmd), "/details/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var d insights.Detail
		if err := decodeJSON(resp, &d); err != nil {
			return err
		}
		printStep("%s", d.Product.Title)
		printStatus("Forecast", "%+.1f%% growth, %.0f%% confidence", d.Analysis.Forecast.GrowthPct, d.Analysis.Forecast.ConfidencePct)
		printStatus("Sentiment", "%s: %s", d.Analysis.Sentiment.Label, d.Analysis.Sentiment.Advice)
		if arb := d.Analysis.Arbitrage; arb != nil {
			printStatus("Sourcing cost", "%s", formatPrice(arb.SourcingCost))
			printStatus("Profit", "%s (%.1f%%, %s risk)", formatPrice(arb.PotentialProfit), arb.MarginPct, arb.RiskLevel)
		}
		if src := d.Analysis.Sourcing; src != nil {
			printStatus("Strategy", "%s via %s", src.Type, src.BestPlatform)
		}
		for _, item := range d.Analysis.Checklist {
			fmt.Printf("  • %s\n", item)
		}
		return nil
	},
}

// --- watchlist ---

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage bookmarked products",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookmarked products",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmdContext(cmd), "/watchlist")
		if err != nil {
			return err
		}
		var items []storage.WatchItem
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Watchlist is empty.")
			return nil
		}
		for _, it := range items {
			fmt.Printf("  %s  %12s  %s\n", colorize(colorBold, it.ID), formatPrice(it.Price), it.Title)
		}
		return nil
	},
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Bookmark a product",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, _ := cmd.Flags().GetFloat64("price")
		platform, _ := cmd.Flags().GetString("platform")
		link, _ := cmd.Flags().GetString("link")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		item := storage.WatchItem{
			Title:    strings.Join(args, " "),
			Price:    price,
			Platform: platform,
			Link:     link,
		}
		resp, err := client.post(cmdContext(cmd), "/watchlist", item)
		if err != nil {
			return err
		}
		var saved storage.WatchItem
		if err := decodeJSON(resp, &saved); err != nil {
			return err
		}
		printSuccess("Added %s", saved.ID)
		return nil
	},
}

var watchlistRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a bookmarked product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmdContext(cmd), "/watchlist/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Removed %s", args[0])
		return nil
	},
}

func init() {
	watchlistAddCmd.Flags().Float64("price", 0, "price in PKR")
	watchlistAddCmd.Flags().String("platform", "", "marketplace name")
	watchlistAddCmd.Flags().String("link", "", "product URL")

	watchlistCmd.AddCommand(watchlistListCmd)
	watchlistCmd.AddCommand(watchlistAddCmd)
	watchlistCmd.AddCommand(watchlistRemoveCmd)
}

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a JSON array of listings into the knowledge base",
	Long: `Load a JSON array of listings into the knowledge base. Records are
normalized and scored like live results. Seeding is skipped when the
knowledge base already has products unless --force is given.

Examples:
  marketscout seed --file listings.json
  marketscout seed --file listings.json --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		force, _ := cmd.Flags().GetBool("force")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading seed file: %w", err)
		}
		raws, err := seed.Decode(bytes.NewReader(data))
		if err != nil {
			return err
		}
		if len(raws) == 0 {
			return fmt.Errorf("%s has no listings", file)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := "/seed"
		if force {
			path += "?force=true"
		}
		resp, err := client.post(cmdContext(cmd), path, json.RawMessage(data))
		if err != nil {
			return err
		}
		var res seed.Result
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if res.Skipped {
			printWarning("Knowledge base already has products; use --force to reload")
			return nil
		}
		printSuccess("Loaded %d products (%d rejected)", res.Loaded, res.Rejected)
		return nil
	},
}

func init() {
	seedCmd.Flags().String("file", "", "JSON file with an array of listings")
	seedCmd.Flags().Bool("force", false, "load even when products exist")
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy products and trends from the local store into Postgres",
	Long: `Copy products and trends from the local SQLite store into the Postgres
primary. Run it after the engine served from the local store while
Postgres was unreachable; local copies overwrite the Postgres ones.

Examples:
  marketscout migrate
  marketscout migrate --prune`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prune, _ := cmd.Flags().GetBool("prune")
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is not set")
		}
		ctx := cmdContext(cmd)

		local, err := storage.OpenSQLite(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening local storage: %w", err)
		}
		defer local.Close()
		pg, err := storage.OpenPostgres(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		defer pg.Close()

		return runMigrate(ctx, pg, local, prune)
	},
}

func runMigrate(ctx context.Context, dst, src storage.Store, prune bool) error {
	res, err := storage.Sync(ctx, dst, src, storage.SyncCollections...)
	for _, col := range storage.SyncCollections {
		printStatus(col, "%s copied", formatCount(res[col]))
	}
	if err != nil {
		return fmt.Errorf("migration stopped: %w", err)
	}
	if prune {
		for _, col := range storage.SyncCollections {
			if err := src.Clear(ctx, col); err != nil {
				return fmt.Errorf("pruning local %s: %w", col, err)
			}
		}
	}
	printSuccess("Migrated %s documents to %s", formatCount(res.Total()), dst.Mode())
	return nil
}

func init() {
	migrateCmd.Flags().Bool("prune", false, "clear the migrated collections from the local store")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Printf("# %s\n", config.FilePath())
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
