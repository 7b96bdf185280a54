// Command pagelens captures interactive screenshots of web pages.
//
// Usage:
//
//	pagelens -url https://example.com -out ./shots   # one-shot capture
//	pagelens -url https://example.com -crawl         # capture the whole site
//	pagelens -serve -config pagelens.yaml            # run the job API
//	pagelens -mcp                                    # MCP server on stdio
//	pagelens -serve -mcp-quic :9444                  # API plus MCP over QUIC
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pagelens/pagelens/browser"
	"github.com/pagelens/pagelens/config"
	"github.com/pagelens/pagelens/jobs"
	"github.com/pagelens/pagelens/mcpquic"
	"github.com/pagelens/pagelens/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to pagelens.yaml config file")
	singleURL := flag.String("url", "", "capture a single URL and exit")
	crawlSite := flag.Bool("crawl", false, "with -url: crawl same-origin links and capture every page")
	outDir := flag.String("out", "", "output directory (overrides config)")
	serve := flag.Bool("serve", false, "run the HTTP job API")
	mcpStdio := flag.Bool("mcp", false, "run an MCP server on stdio")
	mcpQUIC := flag.String("mcp-quic", "", "run an MCP server on this QUIC address (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *crawlSite, *outDir, *serve, *mcpStdio, *mcpQUIC); err != nil {
		logger.Error("pagelens: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL string, crawlSite bool, outDir string, serve, mcpStdio bool, mcpQUIC string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if outDir != "" {
		cfg.Jobs.OutputDir = outDir
	}
	if mcpQUIC != "" {
		cfg.Server.MCPQUICAddr = mcpQUIC
	}

	switch {
	case singleURL != "":
		return runOnce(ctx, logger, cfg, singleURL, crawlSite)
	case serve || mcpStdio || cfg.Server.MCPQUICAddr != "":
		return runServe(ctx, logger, cfg, serve, mcpStdio)
	}

	fmt.Fprintln(os.Stderr, "usage: pagelens -url <url> [-crawl] | -serve [-config <file>] | -mcp | -mcp-quic <addr>")
	os.Exit(1)
	return nil
}

func newService(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*jobs.Service, *browser.Manager, error) {
	bcfg := cfg.BrowserOptions()
	bcfg.Logger = logger
	mgr := browser.NewManager(bcfg)
	if _, err := mgr.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}

	ccfg := cfg.CaptureOptions()
	ccfg.Logger = logger

	svc, err := jobs.NewService(ctx, mgr, jobs.NewDirSink(cfg.Jobs.OutputDir), jobs.Config{
		Concurrency: cfg.Jobs.Concurrency,
		DBPath:      cfg.Jobs.DBPath,
		Capture:     ccfg,
		Crawl:       cfg.CrawlOptions(),
		Logger:      logger,
	})
	if err != nil {
		mgr.Close()
		return nil, nil, err
	}
	return svc, mgr, nil
}

// runOnce captures one URL (or one crawled site) and prints the job
// record when finished.
func runOnce(ctx context.Context, logger *slog.Logger, cfg *config.Config, url string, crawlSite bool) error {
	svc, mgr, err := newService(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	job, err := svc.Submit(ctx, jobs.Request{URL: url, Crawl: crawlSite})
	if err != nil {
		svc.Close()
		return err
	}

	// Close waits for the running job.
	if err := svc.Close(); err != nil {
		return err
	}

	done, err := openResult(ctx, cfg, job.ID)
	if err != nil {
		return err
	}
	data, _ := json.MarshalIndent(done, "", "  ")
	os.Stdout.Write(data)
	os.Stdout.Write([]byte("\n"))
	if done.State == jobs.StateFailed {
		return fmt.Errorf("capture failed: %s", done.Error)
	}
	return nil
}

// openResult re-reads the finished job, the service that ran it being
// closed already.
func openResult(ctx context.Context, cfg *config.Config, id string) (*jobs.Job, error) {
	svc, err := jobs.NewService(ctx, nil, jobs.NewDirSink(cfg.Jobs.OutputDir), jobs.Config{
		DBPath: cfg.Jobs.DBPath,
	})
	if err != nil {
		return nil, err
	}
	defer svc.Close()
	return svc.Get(ctx, id)
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *config.Config, serve, mcpStdio bool) error {
	svc, mgr, err := newService(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()
	defer svc.Close()

	srv := server.New(svc, server.Config{Addr: cfg.Server.Addr, Logger: logger})

	var mcpSrv *mcp.Server
	if mcpStdio || cfg.Server.MCPQUICAddr != "" {
		mcpSrv = mcp.NewServer(&mcp.Implementation{Name: "pagelens", Version: version}, nil)
		srv.RegisterMCP(mcpSrv)
	}

	if cfg.Server.MCPQUICAddr != "" {
		var tlsCfg *tls.Config
		var err error
		if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
			tlsCfg, err = mcpquic.ServerTLSConfig(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			tlsCfg, err = mcpquic.SelfSignedTLSConfig()
		}
		if err != nil {
			return fmt.Errorf("mcp quic tls: %w", err)
		}

		ql, err := mcpquic.NewListener(cfg.Server.MCPQUICAddr, tlsCfg, mcpSrv, logger)
		if err != nil {
			return fmt.Errorf("mcp quic listen: %w", err)
		}
		defer ql.Close()
		go func() {
			if err := ql.Serve(ctx); err != nil && ctx.Err() == nil {
				logger.Error("pagelens: mcp quic server", "error", err)
			}
		}()
	}

	if mcpStdio {
		if !serve {
			return mcpSrv.Run(ctx, &mcp.StdioTransport{})
		}
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil {
				logger.Error("pagelens: mcp stdio server", "error", err)
			}
		}()
	} else if !serve {
		// QUIC-only mode.
		<-ctx.Done()
		return nil
	}

	return srv.ListenAndServe(ctx)
}
