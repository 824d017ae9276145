// Package config loads the CLI configuration from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvLogLevel         = "DAEDALUS_LOG_LEVEL"
	EnvEnvironment      = "DAEDALUS_ENV"
	EnvNATSURL          = "DAEDALUS_NATS_URL"
	EnvNATSToken        = "DAEDALUS_NATS_TOKEN"
	EnvSubject          = "DAEDALUS_SUBJECT"
	EnvQueue            = "DAEDALUS_QUEUE"
	EnvWorkers          = "DAEDALUS_WORKERS"
	EnvRequestTimeout   = "DAEDALUS_REQUEST_TIMEOUT"
	EnvAzureConnection  = "DAEDALUS_AZURE_STORAGE_CONNECTION_STRING"
	EnvAzureContainer   = "DAEDALUS_AZURE_CONTAINER"
	EnvSentryDSN        = "DAEDALUS_SENTRY_DSN"
	EnvTracingEnabled   = "DAEDALUS_TRACING_ENABLED"
	EnvOTLPEndpoint     = "DAEDALUS_OTLP_ENDPOINT"
	EnvTraceSampleRatio = "DAEDALUS_TRACE_SAMPLE_RATIO"
)

// Config is the process configuration.
type Config struct {
	LogLevel    string
	Environment string

	NATSURL        string
	NATSToken      string
	Subject        string
	Queue          string
	Workers        int // 0 sizes the pool from the CPU quota
	RequestTimeout time.Duration

	AzureConnectionString string
	AzureContainer        string

	SentryDSN string

	TracingEnabled   bool
	OTLPEndpoint     string
	TraceSampleRatio float64
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		LogLevel:         "info",
		Environment:      "development",
		NATSURL:          "nats://127.0.0.1:4222",
		Subject:          "daedalus.execute",
		Queue:            "daedalus",
		RequestTimeout:   30 * time.Second,
		AzureContainer:   "executions",
		OTLPEndpoint:     "127.0.0.1:4318",
		TraceSampleRatio: 1.0,
	}
}

// Load reads .env files (".env" when none are given; missing files are
// ignored) and then the environment. Variables already set in the
// environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a configuration from a variable lookup function.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvLogLevel, &cfg.LogLevel)
	str(EnvEnvironment, &cfg.Environment)
	str(EnvNATSURL, &cfg.NATSURL)
	str(EnvNATSToken, &cfg.NATSToken)
	str(EnvSubject, &cfg.Subject)
	str(EnvQueue, &cfg.Queue)
	str(EnvAzureConnection, &cfg.AzureConnectionString)
	str(EnvAzureContainer, &cfg.AzureContainer)
	str(EnvSentryDSN, &cfg.SentryDSN)
	str(EnvOTLPEndpoint, &cfg.OTLPEndpoint)

	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive integer, got %q", EnvWorkers, v))
		} else {
			cfg.Workers = n
		}
	}
	if v, ok := lookup(EnvRequestTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration, got %q", EnvRequestTimeout, v))
		} else {
			cfg.RequestTimeout = d
		}
	}
	if v, ok := lookup(EnvTracingEnabled); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be a boolean, got %q", EnvTracingEnabled, v))
		} else {
			cfg.TracingEnabled = b
		}
	}
	if v, ok := lookup(EnvTraceSampleRatio); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			errs = append(errs, fmt.Errorf("%s must be between 0 and 1, got %q", EnvTraceSampleRatio, v))
		} else {
			cfg.TraceSampleRatio = f
		}
	}

	return cfg, errors.Join(errs...)
}

// ExportEnabled reports whether execution records should be uploaded.
func (c Config) ExportEnabled() bool {
	return c.AzureConnectionString != ""
}
