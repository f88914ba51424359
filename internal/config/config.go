package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"go.ngs.io/geothermophone/internal/domain"
)

const dateLayout = "2006-01-02"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	DataDir         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Defaults applied to octant requests that leave a field unset.
	Window        domain.Window
	Normalize     domain.NormalizeOptions
	SkipNonFinite bool
	Workers       int

	CORSAllowedOrigins []string

	// Kafka publishing is enabled when KafkaBrokers is non-empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// KafkaEnabled reports whether a broker list was configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	start, err := parseDate("WINDOW_START", "1960-01-01")
	if err != nil {
		return nil, err
	}
	end, err := parseDate("WINDOW_END", "2010-01-01")
	if err != nil {
		return nil, err
	}
	window := domain.Window{Start: start, End: end}
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("invalid WINDOW_START/WINDOW_END: %w", err)
	}

	mode, err := domain.ParseMode(sharedcfg.EnvOrDefault("NORMALIZE_MODE", "relative"))
	if err != nil {
		return nil, fmt.Errorf("invalid NORMALIZE_MODE: %w", err)
	}
	valueType, err := domain.ParseValueType(sharedcfg.EnvOrDefault("VALUE_TYPE", "int"))
	if err != nil {
		return nil, fmt.Errorf("invalid VALUE_TYPE: %w", err)
	}
	outMin, err := parseFloat("OUTPUT_MIN", 0)
	if err != nil {
		return nil, err
	}
	outMax, err := parseFloat("OUTPUT_MAX", 65535)
	if err != nil {
		return nil, err
	}
	if !(outMin < outMax) {
		return nil, errors.New("OUTPUT_MIN must be below OUTPUT_MAX")
	}
	degenerate, err := domain.ParseDegeneratePolicy(sharedcfg.EnvOrDefault("DEGENERATE_POLICY", "min"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEGENERATE_POLICY: %w", err)
	}

	workers := 1
	if s := os.Getenv("AGGREGATE_WORKERS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, errors.New("invalid AGGREGATE_WORKERS")
		}
		workers = n
	}

	var brokers []string
	if raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "./data"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Window: window,
		Normalize: domain.NormalizeOptions{
			Mode:       mode,
			Min:        outMin,
			Max:        outMax,
			Type:       valueType,
			Degenerate: degenerate,
		},
		SkipNonFinite: os.Getenv("SKIP_NON_FINITE") == "true",
		Workers:       workers,

		CORSAllowedOrigins: parseList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "octant-series"),
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseDate(key, def string) (time.Time, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", key, s)
	}
	return t, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return f, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
