// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gitlab.com/flik/groupledger/internal/logger"
	"gitlab.com/flik/groupledger/internal/models"
	"gitlab.com/flik/groupledger/internal/telemetry"
)

// Log output formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// DefaultServiceName is the telemetry service name used when SERVICE_NAME is unset.
const DefaultServiceName = "groupledger"

// Config holds all configuration for the ledger.
type Config struct {
	// DatabaseURL enables PostgreSQL persistence when set.
	DatabaseURL     string
	LogLevel        string
	LogFormat       string
	LogHashSalt     string
	DefaultCurrency string
	// AutoSave persists state after every successful mutation.
	AutoSave          bool
	TelemetryExporter string
	OTLPEndpoint      string
	OTLPInsecure      bool
	ServiceName       string
	MetricInterval    time.Duration
}

// Load reads configuration from environment variables, after loading a
// .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		LogFormat:         strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))),
		LogHashSalt:       os.Getenv("LOG_HASH_SALT"),
		DefaultCurrency:   strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_CURRENCY"))),
		TelemetryExporter: strings.ToLower(strings.TrimSpace(os.Getenv("TELEMETRY_EXPORTER"))),
		OTLPEndpoint:      strings.TrimSpace(os.Getenv("OTLP_ENDPOINT")),
		ServiceName:       strings.TrimSpace(os.Getenv("SERVICE_NAME")),
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = LogFormatConsole
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = models.DefaultCurrency
	}
	if cfg.TelemetryExporter == "" {
		cfg.TelemetryExporter = telemetry.ExporterNone
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}

	var errs []string

	cfg.AutoSave = true
	if v := os.Getenv("AUTO_SAVE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("AUTO_SAVE must be a boolean, got %q", v))
		}
		cfg.AutoSave = b
	}
	if v := os.Getenv("OTLP_INSECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("OTLP_INSECURE must be a boolean, got %q", v))
		}
		cfg.OTLPInsecure = b
	}

	cfg.MetricInterval = telemetry.DefaultMetricInterval
	if v := os.Getenv("METRIC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.MetricInterval = d
		}
	}

	if err := cfg.validate(errs...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that the configuration is consistent. Problems found
// while parsing are passed in so all of them are reported together.
func (c *Config) validate(errs ...string) error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error", "disabled":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of debug, info, warn, error, disabled, got %q", c.LogLevel))
	}

	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be console or json, got %q", c.LogFormat))
	}

	if c.LogHashSalt != "" && len(c.LogHashSalt) < logger.MinHashSaltLength {
		errs = append(errs, fmt.Sprintf("LOG_HASH_SALT must be at least %d characters", logger.MinHashSaltLength))
	}

	if _, ok := models.SupportedCurrencies[c.DefaultCurrency]; !ok {
		errs = append(errs, fmt.Sprintf("DEFAULT_CURRENCY %q is not supported", c.DefaultCurrency))
	}

	if !telemetry.ValidExporter(c.TelemetryExporter) {
		errs = append(errs, fmt.Sprintf("TELEMETRY_EXPORTER must be one of none, stdout, otlp-grpc, otlp-http, got %q", c.TelemetryExporter))
	}
	if (c.TelemetryExporter == telemetry.ExporterOTLPGRPC || c.TelemetryExporter == telemetry.ExporterOTLPHTTP) && c.OTLPEndpoint == "" {
		errs = append(errs, "OTLP_ENDPOINT is required for otlp exporters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Persistent reports whether a database is configured.
func (c *Config) Persistent() bool {
	return c.DatabaseURL != ""
}

// ApplyLogging configures the global logger from c.
func (c *Config) ApplyLogging() error {
	if c.LogFormat == LogFormatJSON {
		logger.SetJSON()
	}
	if c.LogLevel != "" {
		logger.SetLevel(c.LogLevel)
	}
	if c.LogHashSalt != "" {
		if err := logger.SetHashSalt(c.LogHashSalt); err != nil {
			return fmt.Errorf("failed to set log hash salt: %w", err)
		}
	}
	return nil
}

// TelemetryOptions returns the telemetry setup options for c.
func (c *Config) TelemetryOptions() telemetry.Options {
	return telemetry.Options{
		ServiceName:    c.ServiceName,
		Exporter:       c.TelemetryExporter,
		Endpoint:       c.OTLPEndpoint,
		Insecure:       c.OTLPInsecure,
		MetricInterval: c.MetricInterval,
	}
}
