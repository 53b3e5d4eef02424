package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/harvest/api"
	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/engine"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/search"
	"github.com/use-agent/harvest/toolserver"
)

func main() {
	// ── 1. Load and validate configuration ──────────────────────────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	// The stdio transport owns stdout for the protocol; logs go to stderr.
	initLogger(cfg.Log, cfg.Server.Transport == "stdio")
	slog.Info("harvest starting",
		"version", toolserver.Version,
		"transport", cfg.Server.Transport,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// ── 3. Build the scraping stack ─────────────────────────────────
	client := fetch.NewClient(cfg.Fetch, cfg.Browser.DefaultProxy)
	extractor := extract.NewExtractor(nil)
	session := browser.NewSession(cfg.Browser, nil)

	rungs := []engine.Rung{
		engine.NewHTTPRung(client, extractor),
		engine.NewStaticRung(client, extractor),
		engine.NewHeadlessRung(session, extractor),
		engine.NewHeadfulRung(session, extractor, cfg.Scraper.HeadfulSettle),
	}
	ladder := engine.NewLadder(rungs, engine.NewPolicy(cfg.Scraper), cfg.Scraper, nil)

	searcher := search.NewManager(cfg.Search, client, nil)
	cc := cache.New(cfg.Cache)

	// ── 4. Register the tool surface ────────────────────────────────
	ts := toolserver.New(cfg, toolserver.Deps{
		Scraper:   ladder,
		Searcher:  searcher,
		Browser:   session,
		Extractor: extractor,
		Cache:     cc,
	}, nil)

	// ── 5. Serve ────────────────────────────────────────────────────
	if cfg.Server.Transport == "stdio" {
		runStdio(ts, session)
		return
	}
	runHTTP(cfg, ts, session, cc)
}

// runStdio serves MCP over stdin/stdout until the client disconnects.
func runStdio(ts *toolserver.Server, session *browser.Session) {
	slog.Info("serving MCP over stdio")
	err := ts.ServeStdio()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cerr := session.Close(closeCtx); cerr != nil {
		slog.Warn("browser teardown failed", "error", cerr)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
	slog.Info("harvest stopped")
}

// runHTTP serves the gin router until SIGINT/SIGTERM, then drains requests
// before tearing the browser down.
func runHTTP(cfg *config.Config, ts *toolserver.Server, session *browser.Session, cc *cache.Cache) {
	startTime := time.Now()
	router := api.NewRouter(ts.HTTPHandler(), session, cc, cfg, toolserver.Version, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()
	if err := session.Close(closeCtx); err != nil {
		slog.Warn("browser teardown failed", "error", err)
	}
	slog.Info("harvest stopped")
}

// initLogger configures the process-wide slog default.
func initLogger(cfg config.LogConfig, stderrOnly bool) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := os.Stdout
	if stderrOnly {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}
