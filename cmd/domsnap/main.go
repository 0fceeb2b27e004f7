// Command domsnap is the web page capture service.
//
// Usage:
//
//	domsnap -config domsnap.yaml                    # HTTP API server
//	domsnap -url https://example.com -out page.png  # one-shot capture
//	domsnap -mcp                                    # MCP server on stdio
//	domsnap -mcp-quic :9444                         # MCP over QUIC alongside HTTP
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domsnap"
	"github.com/hazyhaar/domsnap/internal/mcpquic"
)

type runOptions struct {
	configPath string
	singleURL  string
	outPath    string
	format     string
	listen     string
	mcpStdio   bool
	mcpQUIC    string
}

func main() {
	configPath := flag.String("config", "", "path to domsnap.yaml config file")
	singleURL := flag.String("url", "", "capture a single URL and exit")
	outPath := flag.String("out", "capture.png", "output file for -url mode")
	format := flag.String("format", "", "image format for -url mode: png, jpeg")
	listen := flag.String("listen", "", "HTTP bind address (overrides config)")
	mcpStdio := flag.Bool("mcp", false, "serve MCP over stdio instead of HTTP")
	mcpQUIC := flag.String("mcp-quic", "", "also serve MCP over QUIC on this address")
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
	// Logs go to stderr: in -mcp mode stdout is the protocol channel.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		configPath: *configPath,
		singleURL:  *singleURL,
		outPath:    *outPath,
		format:     *format,
		listen:     *listen,
		mcpStdio:   *mcpStdio,
		mcpQUIC:    *mcpQUIC,
	}
	if err := run(ctx, logger, opts); err != nil {
		logger.Error("domsnap: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, opts runOptions) error {
	cfg := &domsnap.Config{}
	if opts.configPath != "" {
		var err error
		cfg, err = domsnap.LoadConfigFile(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	if opts.singleURL != "" {
		// One-shot captures run on the operator's own machine, where
		// localhost and LAN targets are legitimate.
		cfg.Capture.AllowPrivateTargets = true
	}

	svc, err := domsnap.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer svc.Close()

	switch {
	case opts.singleURL != "":
		return runSingle(ctx, logger, svc, opts.singleURL, opts.outPath, opts.format)
	case opts.mcpStdio:
		return runMCPStdio(ctx, svc)
	default:
		return runServer(ctx, logger, svc, cfg, opts.mcpQUIC)
	}
}

func runSingle(ctx context.Context, logger *slog.Logger, svc *domsnap.Service, url, out, format string) error {
	img, err := svc.Capture(ctx, &domsnap.CaptureRequest{
		URL:        url,
		OutputPath: out,
		Format:     domsnap.Format(format),
	})
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	logger.Info("domsnap: capture written", "path", out, "format", string(img.Format), "bytes", len(img.Data))
	return nil
}

func runMCPStdio(ctx context.Context, svc *domsnap.Service) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "domsnap", Version: "1.0.0"}, nil)
	svc.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func runServer(ctx context.Context, logger *slog.Logger, svc *domsnap.Service, cfg *domsnap.Config, quicAddr string) error {
	if quicAddr != "" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "domsnap", Version: "1.0.0"}, nil)
		svc.RegisterMCP(mcpSrv)

		certFile := env("TLS_CERT", "")
		keyFile := env("TLS_KEY", "")
		var tlsCfg *tls.Config
		var err error
		if certFile != "" && keyFile != "" {
			tlsCfg, err = mcpquic.ServerTLSConfig(certFile, keyFile)
		} else {
			tlsCfg, err = mcpquic.SelfSignedTLSConfig()
		}
		if err != nil {
			return fmt.Errorf("mcp quic tls: %w", err)
		}

		ql, err := mcpquic.NewListener(quicAddr, tlsCfg, mcpSrv, logger)
		if err != nil {
			return fmt.Errorf("mcp quic listen: %w", err)
		}
		defer ql.Close()
		go func() {
			if serr := ql.Serve(ctx); serr != nil && ctx.Err() == nil {
				logger.Error("domsnap: mcp quic", "error", serr)
			}
		}()
	}

	// No WriteTimeout: a full-page capture legitimately holds the
	// connection for the whole scroll budget.
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("domsnap: http server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("domsnap: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
