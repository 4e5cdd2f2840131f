package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/marketscout/internal/api"
	"github.com/kalambet/marketscout/internal/config"
	"github.com/kalambet/marketscout/internal/refresh"
	"github.com/kalambet/marketscout/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the marketscout server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running marketscout server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server, store and refresh status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "marketscout.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "marketscout version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("marketscout is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("marketscout is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: "marketscout",
		Version:     version,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("flushing traces failed", "error", err)
		}
	}()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	apiToken, err := config.APIToken(cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available", "file", filepath.Join(cfg.Storage.DataDir, "api_token"))

	// Background workers stop with ctx; the queue flushes what it holds.
	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		a.queue.Run(ctx)
	}()
	if cfg.Refresh.Enabled {
		go a.scheduler.Run(ctx)
	}

	handler := api.NewAppHandler(api.AppDeps{
		Search:    a.resolver,
		Trends:    a.trends,
		Refresh:   a.scheduler,
		Insights:  a.insights,
		Watchlist: a.catalog,
		Products:  a.catalog,
		Sources:   a.sources,
		StoreMode: a.catalog.Mode(),
		Version:   version,
		Token:     apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Search:   a.resolver,
			Trends:   a.trends,
			Refresh:  a.scheduler,
			Insights: a.insights,
			Version:  version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "marketscout listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Stops the workers when the listener failed on its own.
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	if waitErr := a.scheduler.Wait(shutdownCtx); waitErr != nil {
		slog.Warn("refresh still running at shutdown", "error", waitErr)
	}
	<-queueDone
	return err
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("marketscout is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop marketscout (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to marketscout (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.httpClient.Timeout = 2 * time.Second

	var health struct {
		Store   string   `json:"store"`
		Sources []string `json:"sources"`
	}
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		printStatus("Storage", "%s (%s)", cfg.Storage.Backend, cfg.Storage.DataDir)
		return nil
	}
	if err := decodeJSON(resp, &health); err != nil {
		printStatus("Server", "error (%v)", err)
		return nil
	}
	printStatus("Server", "running on port %d", cfg.Server.Port)
	printStatus("Store", "%s", health.Store)
	printStatus("Sources", "%s", strings.Join(health.Sources, ", "))

	var st refresh.Status
	if resp, err := client.get(ctx, "/status"); err == nil && decodeJSON(resp, &st) == nil {
		printRunStatus(st)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func printRunStatus(st refresh.Status) {
	last := "never"
	if st.LastRun != nil {
		last = st.LastRun.Local().Format(time.RFC1123)
	}
	printStatus("Last refresh", "%s", last)
	status := st.Status
	if st.Running {
		status += " (refresh running)"
	}
	if strings.HasPrefix(st.Status, "Failed") {
		status = colorize(colorRed, status)
	}
	printStatus("Refresh status", "%s", status)
}
