// Package main provides the geothermophone HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"go.ngs.io/geothermophone/internal/adapter/store"
	"go.ngs.io/geothermophone/internal/adapter/store/ncep"
	"go.ngs.io/geothermophone/internal/config"
	"go.ngs.io/geothermophone/internal/domain"
	httpHandler "go.ngs.io/geothermophone/internal/http"
	"go.ngs.io/geothermophone/internal/observability"
	"go.ngs.io/geothermophone/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("geothermophone version %s\n", version)
		return
	}

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	logger.Info("starting geothermophone server",
		"addr", cfg.HTTPAddr,
		"data_dir", cfg.DataDir,
		"window_start", cfg.Window.Start.Format(time.DateOnly),
		"window_end", cfg.Window.End.Format(time.DateOnly),
		"mode", cfg.Normalize.Mode.String())

	// Initialize store.
	var loader store.VariableLoader = ncep.NewStore(cfg.DataDir)
	if names, err := loader.Available(); err != nil {
		logger.Warn("data directory not readable", "error", err)
	} else {
		logger.Info("variables available", "variables", names)
	}

	// Initialize use case.
	octantUC := usecase.NewOctantUseCase(loader, usecase.Options{
		Codec:         domain.DefaultTimeCodec(),
		Window:        cfg.Window,
		Normalize:     cfg.Normalize,
		SkipNonFinite: cfg.SkipNonFinite,
		Workers:       cfg.Workers,
	}, clock, metrics, logger)

	// Setup router.
	router := httpHandler.SetupRouter(octantUC, cfg.CORSAllowedOrigins, clock)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Geothermophone Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  geothermophone [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  HTTP_ADDR               Listen address (default: :8080)")
	fmt.Println("  DATA_DIR                NetCDF data directory (default: ./data)")
	fmt.Println("  LOG_LEVEL               debug, info, warn or error (default: info)")
	fmt.Println("  LOG_FORMAT              json or text (default: json)")
	fmt.Println("  SHUTDOWN_TIMEOUT        Graceful shutdown timeout (default: 10s)")
	fmt.Println("  WINDOW_START            Default window start, YYYY-MM-DD (default: 1960-01-01)")
	fmt.Println("  WINDOW_END              Default window end, exclusive (default: 2010-01-01)")
	fmt.Println("  NORMALIZE_MODE          relative or absolute (default: relative)")
	fmt.Println("  OUTPUT_MIN, OUTPUT_MAX  Default output range (default: 0, 65535)")
	fmt.Println("  VALUE_TYPE              int, round or float (default: int)")
	fmt.Println("  DEGENERATE_POLICY       min or error for zero-spread scopes (default: min)")
	fmt.Println("  SKIP_NON_FINITE         Treat NaN/Inf samples as missing (default: false)")
	fmt.Println("  AGGREGATE_WORKERS       Concurrent timestep reductions (default: 1)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET /health                      Health check")
	fmt.Println("  GET /metrics                     Prometheus metrics")
	fmt.Println("  GET /v1/variables                List variables and their availability")
	fmt.Println("  GET /v1/octants/:variable        Normalized octant series")
	fmt.Println("      ?start=&end=&mode=&min=&max=&type=")
	fmt.Println()
}
