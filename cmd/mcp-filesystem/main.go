// Command mcp-filesystem serves filesystem tools over MCP, confined to the directories given on
// the command line.
//
// Usage:
//
//	mcp-filesystem [flags] <allowed-directory> [additional-directories...]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/TangGee/mcp-filesystem/pkg/auth"
	"github.com/TangGee/mcp-filesystem/pkg/config"
	"github.com/TangGee/mcp-filesystem/pkg/logging"
	"github.com/TangGee/mcp-filesystem/pkg/metrics"
	"github.com/TangGee/mcp-filesystem/servers/filesystem"
)

var (
	buildName    = "secure-filesystem-server"
	buildVersion = "0.2.0"
	startedAt    = time.Now()
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: mcp-filesystem [flags] <allowed-directory> [additional-directories...]")
		os.Exit(2)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	opts := []filesystem.ServerOption{filesystem.WithLogger(logger)}
	authOn := cfg.AuthEnabled && cfg.Transport != config.TransportStdio
	if authOn {
		opts = append(opts, filesystem.WithAuthorizer(auth.IsAuthenticated))
	}
	fsServer, err := filesystem.NewServer(cfg.AllowedDirectories, opts...)
	if err != nil {
		return fmt.Errorf("failed to create filesystem server: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	limits, err := metrics.New(reg, metrics.Options{
		RPS:            cfg.RateLimit,
		MaxConcurrency: cfg.MaxConcurrency,
		Timeout:        cfg.ToolTimeout,
	})
	if err != nil {
		return err
	}

	s := server.NewMCPServer(
		buildName,
		buildVersion,
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithRecovery(),
	)
	fsServer.Register(s, limits.Wrap)

	logger.Info("secure filesystem server starting",
		zap.String("transport", cfg.Transport),
		zap.Strings("allowed_directories", fsServer.Workspace().Roots().Dirs()),
		zap.Bool("auth", authOn),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listen error", zap.Error(err))
			}
		}()
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
	}

	var contextFunc func(context.Context, *http.Request) context.Context
	if authOn {
		contextFunc = auth.HTTPContextFunc(auth.NewVerifier(cfg.JWTSecret), logger)
	} else {
		contextFunc = func(ctx context.Context, _ *http.Request) context.Context { return ctx }
	}

	mux := http.NewServeMux()
	switch cfg.Transport {
	case config.TransportStdio:
		if err := server.ServeStdio(s); err != nil && ctx.Err() == nil {
			return fmt.Errorf("stdio server error: %w", err)
		}
		return nil

	case config.TransportSSE:
		sse := server.NewSSEServer(s,
			server.WithStaticBasePath(cfg.BasePath),
			server.WithKeepAliveInterval(30*time.Second),
			server.WithBaseURL(cfg.BaseURL),
			server.WithSSEContextFunc(contextFunc),
		)
		mux.Handle(sse.CompleteSsePath(), sse.SSEHandler())
		mux.Handle(sse.CompleteMessagePath(), sse.MessageHandler())

	case config.TransportHTTP:
		mux.Handle(cfg.BasePath+"/", server.NewStreamableHTTPServer(s,
			server.WithHTTPContextFunc(contextFunc),
		))

	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	addHealthRoutes(mux, cfg.Transport)
	if cfg.MetricsAddr == "" {
		mux.Handle("/metrics", metrics.Handler(reg))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           logging.Middleware(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("base_path", cfg.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("%s listen error: %w", cfg.Transport, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func addHealthRoutes(mux *http.ServeMux, transport string) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, transport)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, transport)
	})
}

func writeHealth(w http.ResponseWriter, transport string) {
	resp := map[string]any{
		"status":    "ok",
		"name":      buildName,
		"version":   buildVersion,
		"transport": transport,
		"uptime":    time.Since(startedAt).Round(time.Millisecond).String(),
		"startedAt": startedAt.UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
