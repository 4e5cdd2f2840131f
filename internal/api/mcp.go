package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Search   Searcher
	Trends   TrendReader
	Refresh  Refresher
	Insights Insights // optional; without it the stats resource is not registered
	Version  string
}

const (
	defaultMCPLimit = 10
	maxMCPLimit     = 50
)

// NewMCPServer creates an MCP server exposing search, trends and refresh control.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"marketscout",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("marketscout: marketplace search with opportunity scoring, emerging trends and refresh control."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_market",
			mcp.WithDescription("Search marketplaces for a product keyword and return scored listings. Always returns results; check source and isPrediction."),
			mcp.WithString("query", mcp.Description("Product keyword"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of listings (default 10)")),
		),
		mcpSearchMarket(deps),
	)

	s.AddTool(
		mcp.NewTool("get_trends",
			mcp.WithDescription("List emerging products from the knowledge base."),
			mcp.WithString("type", mcp.Description("daily or seasonal (default daily)"), mcp.Enum("daily", "seasonal")),
		),
		mcpGetTrends(deps),
	)

	s.AddTool(
		mcp.NewTool("trigger_refresh",
			mcp.WithDescription("Start the background niche refresh. No-op when one is already running."),
		),
		mcpTriggerRefresh(deps),
	)

	s.AddTool(
		mcp.NewTool("run_status",
			mcp.WithDescription("Report the last refresh time and status."),
		),
		mcpRunStatus(deps),
	)

	if deps.Insights != nil {
		s.AddResource(
			mcp.NewResource(
				"market://stats",
				"Market Stats",
				mcp.WithResourceDescription("Knowledge base totals and sync state as JSON"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceStats(deps),
		)
	}

	return s
}

func mcpSearchMarket(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil || query == "" {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", defaultMCPLimit)
		if limit <= 0 {
			limit = defaultMCPLimit
		}
		if limit > maxMCPLimit {
			limit = maxMCPLimit
		}

		res := deps.Search.Resolve(ctx, query)
		res.Results = trimResults(res.Results, limit)
		return mcpJSON(searchResponse{Result: res, Count: len(res.Results)})
	}
}

func mcpGetTrends(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind := req.GetString("type", "daily")
		return mcpJSON(deps.Trends.GetTrends(ctx, kind))
	}
}

func mcpTriggerRefresh(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := deps.Refresh.Trigger(ctx)
		if res.AlreadyRunning {
			return mcpText("already refreshing"), nil
		}
		return mcpText("refresh started"), nil
	}
}

func mcpRunStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpJSON(deps.Refresh.Status(ctx))
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Insights.MarketStats(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
