// Command octants aggregates and normalizes one variable and writes the
// octant series as JSON or CSV, optionally publishing them to Kafka.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"go.ngs.io/geothermophone/internal/adapter/csv"
	"go.ngs.io/geothermophone/internal/adapter/kafka"
	"go.ngs.io/geothermophone/internal/adapter/store/ncep"
	"go.ngs.io/geothermophone/internal/config"
	"go.ngs.io/geothermophone/internal/domain"
	"go.ngs.io/geothermophone/internal/observability"
	"go.ngs.io/geothermophone/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Command line flags, defaulting to the environment configuration.
	dataDir := flag.String("data", cfg.DataDir, "Directory containing NetCDF files")
	variable := flag.String("var", "air", "Variable to aggregate (air, prate, rhum, wspd)")
	start := flag.String("start", cfg.Window.Start.Format(time.DateOnly), "Window start, inclusive (YYYY-MM-DD)")
	end := flag.String("end", cfg.Window.End.Format(time.DateOnly), "Window end, exclusive (YYYY-MM-DD)")
	mode := flag.String("mode", cfg.Normalize.Mode.String(), "Normalization mode: relative or absolute")
	outMin := flag.Float64("min", cfg.Normalize.Min, "Output range minimum")
	outMax := flag.Float64("max", cfg.Normalize.Max, "Output range maximum")
	valueType := flag.String("type", cfg.Normalize.Type.String(), "Output values: int, round or float")
	format := flag.String("format", "json", "Output format: json or csv")
	out := flag.String("out", "", "Output file (default: stdout)")
	publish := flag.Bool("publish", false, "Publish octant series to KAFKA_BROKERS/KAFKA_TOPIC")
	workers := flag.Int("workers", cfg.Workers, "Concurrent timestep reductions")
	flag.Parse()

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if err := run(runArgs{
		cfg:       cfg,
		dataDir:   *dataDir,
		variable:  *variable,
		start:     *start,
		end:       *end,
		mode:      *mode,
		min:       *outMin,
		max:       *outMax,
		valueType: *valueType,
		format:    *format,
		out:       *out,
		publish:   *publish,
		workers:   *workers,
	}, metrics, logger); err != nil {
		logger.Error("octants failed", "variable", *variable, "error", err)
		os.Exit(1)
	}
}

type runArgs struct {
	cfg       *config.Config
	dataDir   string
	variable  string
	start     string
	end       string
	mode      string
	min       float64
	max       float64
	valueType string
	format    string
	out       string
	publish   bool
	workers   int
}

func run(args runArgs, metrics *observability.Metrics, logger *slog.Logger) error {
	if args.format != "json" && args.format != "csv" {
		return fmt.Errorf("unknown format %q (use json or csv)", args.format)
	}
	if args.publish && !args.cfg.KafkaEnabled() {
		return fmt.Errorf("-publish requires KAFKA_BROKERS")
	}

	startT, err := time.Parse(time.DateOnly, args.start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	endT, err := time.Parse(time.DateOnly, args.end)
	if err != nil {
		return fmt.Errorf("invalid -end: %w", err)
	}
	mode, err := domain.ParseMode(args.mode)
	if err != nil {
		return err
	}
	vt, err := domain.ParseValueType(args.valueType)
	if err != nil {
		return err
	}

	uc := usecase.NewOctantUseCase(ncep.NewStore(args.dataDir), usecase.Options{
		Codec:         domain.DefaultTimeCodec(),
		Window:        args.cfg.Window,
		Normalize:     args.cfg.Normalize,
		SkipNonFinite: args.cfg.SkipNonFinite,
		Workers:       args.workers,
	}, clockwork.NewRealClock(), metrics, logger)

	req := uc.NewRequest(args.variable)
	req.Start, req.End = startT, endT
	req.Mode, req.ValueType = mode, vt
	req.Min, req.Max = args.min, args.max

	resp, err := uc.Execute(req)
	if err != nil {
		return err
	}

	if err := writeOutput(args.out, args.format, resp); err != nil {
		return err
	}

	if args.publish {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		pub := kafka.NewPublisher(args.cfg.KafkaBrokers, args.cfg.KafkaTopic, metrics, logger)
		if err := pub.Publish(ctx, resp); err != nil {
			_ = pub.Close()
			return err
		}
		if err := pub.Close(); err != nil {
			return fmt.Errorf("kafka close: %w", err)
		}
	}
	return nil
}

func writeOutput(path, format string, resp *usecase.OctantResponse) error {
	if path == "" {
		return encode(os.Stdout, format, resp)
	}
	if format == "csv" {
		return csv.WriteFile(path, resp)
	}

	//nolint:gosec // G304: Output path comes from the command line.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := encode(f, format, resp); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

func encode(w io.Writer, format string, resp *usecase.OctantResponse) error {
	if format == "csv" {
		return csv.Write(w, resp)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
