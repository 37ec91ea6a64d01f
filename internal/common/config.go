package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Storage     StorageConfig    `toml:"storage"`
	OParl       OParlConfig      `toml:"oparl"`
	Logging     LoggingConfig    `toml:"logging"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Metrics     MetricsConfig    `toml:"metrics"`
	Extraction  ExtractionConfig `toml:"extraction"` // Pass-through for the text-extraction collaborator
	Search      SearchConfig     `toml:"search"`     // Pass-through for the search-indexing collaborator
}

type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
	Cache  CacheConfig  `toml:"cache"`
}

// SQLiteConfig represents the relational mirror database
type SQLiteConfig struct {
	Path string `toml:"path" validate:"required"` // Database file path
}

// CacheConfig represents the Badger-backed HTTP response cache
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Cache directory path
}

// OParlConfig contains upstream fetch behaviour
type OParlConfig struct {
	MaxConcurrent     int           `toml:"max_concurrent" validate:"min=1"`      // Concurrent requests per host
	RequestsPerSecond int           `toml:"requests_per_second" validate:"min=1"` // Per-host rate limit
	RequestTimeout    time.Duration `toml:"request_timeout"`                      // Per-request timeout
	MaxRetries        int           `toml:"max_retries" validate:"min=1"`         // Retry attempts for transient failures
	InitialBackoff    time.Duration `toml:"initial_backoff"`                      // First retry delay
	MaxBackoff        time.Duration `toml:"max_backoff"`                          // Retry delay ceiling
	UserAgent         string        `toml:"user_agent"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

// SchedulerConfig controls the periodic sync daemon
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron expression for sync-all runs
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	Stdout  bool `toml:"stdout"` // Periodic stdout metric export (dev mode)
}

// ExtractionConfig is carried for the text-extraction collaborator; the sync
// core never reads it beyond loading.
type ExtractionConfig struct {
	Enabled bool `toml:"enabled"`
	Async   bool `toml:"async"`
}

// SearchConfig is carried for the search-indexing collaborator.
type SearchConfig struct {
	AutoIndex bool `toml:"auto_index"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path: "./data/curia.db",
			},
			Cache: CacheConfig{
				Enabled: true,
				Path:    "./data/cache",
			},
		},
		OParl: OParlConfig{
			MaxConcurrent:     4,
			RequestsPerSecond: 10,
			RequestTimeout:    30 * time.Second,
			MaxRetries:        3,
			InitialBackoff:    time.Second,
			MaxBackoff:        30 * time.Second,
			UserAgent:         "curia/" + Version,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 0 3 * * *", // Daily at 03:00
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Stdout:  false,
		},
	}
}

// LoadFromFiles loads configuration in layers: defaults -> file(s) -> environment.
// Later files override earlier ones. Missing files are an error; an empty path
// list is allowed and yields defaults plus environment overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid configuration: unknown log level %q", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// The OPARL_MAX_CONCURRENT / DATABASE_URL names are the documented operator
// surface; CURIA_* names cover the remaining keys.
func applyEnvOverrides(config *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Storage.SQLite.Path = dsn
	}
	if path := os.Getenv("CURIA_CACHE_PATH"); path != "" {
		config.Storage.Cache.Path = path
	}

	if maxConcurrent := os.Getenv("OPARL_MAX_CONCURRENT"); maxConcurrent != "" {
		if mc, err := strconv.Atoi(maxConcurrent); err == nil {
			config.OParl.MaxConcurrent = mc
		}
	}
	if rps := os.Getenv("CURIA_OPARL_REQUESTS_PER_SECOND"); rps != "" {
		if r, err := strconv.Atoi(rps); err == nil {
			config.OParl.RequestsPerSecond = r
		}
	}
	if requestTimeout := os.Getenv("CURIA_OPARL_REQUEST_TIMEOUT"); requestTimeout != "" {
		if rt, err := time.ParseDuration(requestTimeout); err == nil {
			config.OParl.RequestTimeout = rt
		}
	}
	if maxRetries := os.Getenv("CURIA_OPARL_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.OParl.MaxRetries = mr
		}
	}
	if userAgent := os.Getenv("CURIA_OPARL_USER_AGENT"); userAgent != "" {
		config.OParl.UserAgent = userAgent
	}

	if level := os.Getenv("CURIA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("CURIA_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if schedule := os.Getenv("CURIA_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
	if enabled := os.Getenv("CURIA_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}

	if enabled := os.Getenv("CURIA_METRICS_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Metrics.Enabled = e
		}
	}

	// Collaborator pass-through values
	if enabled := os.Getenv("TEXT_EXTRACTION_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Extraction.Enabled = e
		}
	}
	if async := os.Getenv("TEXT_EXTRACTION_ASYNC"); async != "" {
		if a, err := strconv.ParseBool(async); err == nil {
			config.Extraction.Async = a
		}
	}
	if autoIndex := os.Getenv("MEILISEARCH_AUTO_INDEX"); autoIndex != "" {
		if ai, err := strconv.ParseBool(autoIndex); err == nil {
			config.Search.AutoIndex = ai
		}
	}
}
