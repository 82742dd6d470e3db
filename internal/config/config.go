package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Data backends for the result store.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Transaction source kinds.
const (
	SourceFile   = "file"
	SourceHTTP   = "http"
	SourceSheets = "sheets"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Result store
	DataBackend  string
	SQLiteDBPath string
	PostgresDSN  string

	// Transaction source
	SourceKind          string
	SourcePath          string
	SourceURL           string
	GoogleSpreadsheetID string
	GoogleSheetName     string
	SourceCacheTTL      time.Duration

	// Forecasting
	DefaultCurrency string
	TrainingSeed    uint64

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	ForecastSchedule   string
	ForecastCurrencies []string
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cashflow.db"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),

		SourceKind:          getEnv("SOURCE_KIND", SourceFile),
		SourcePath:          getEnv("SOURCE_PATH", "./data/transactions.csv"),
		SourceURL:           getEnv("SOURCE_URL", ""),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", ""),
		SourceCacheTTL:      getEnvDuration("SOURCE_CACHE_TTL", 5*time.Minute),

		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "GBP"),
		TrainingSeed:    getEnvUint("TRAINING_SEED", 1),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cashflow"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "forecast_requests"),

		ForecastSchedule:   getEnv("FORECAST_SCHEDULE", ""),
		ForecastCurrencies: getEnvList("FORECAST_CURRENCIES", nil),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, ok := ParseLevel(c.LogLevel); !ok {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	validBackends := []string{BackendMemory, BackendSQLite, BackendPostgres}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
		}
	}

	validSources := []string{SourceFile, SourceHTTP, SourceSheets}
	if !slices.Contains(validSources, c.SourceKind) {
		errors = append(errors, fmt.Sprintf("invalid source kind '%s': must be one of %v", c.SourceKind, validSources))
	}

	switch c.SourceKind {
	case SourceFile:
		if c.SourcePath == "" {
			errors = append(errors, "SOURCE_PATH is required when using file source")
		}
	case SourceHTTP:
		if parsedURL, err := url.Parse(c.SourceURL); err != nil || c.SourceURL == "" {
			errors = append(errors, fmt.Sprintf("invalid SOURCE_URL '%s': required for http source", c.SourceURL))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid SOURCE_URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	case SourceSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets source")
		}
	}

	if c.SourceCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid source cache TTL %v: must be at least 1 second", c.SourceCacheTTL))
	}

	if c.DefaultCurrency == "" {
		errors = append(errors, "default currency cannot be empty")
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ForecastSchedule != "" {
		if _, err := cron.ParseStandard(c.ForecastSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid forecast schedule '%s': %v", c.ForecastSchedule, err))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ScheduledCurrencies returns the currencies regenerated on schedule,
// falling back to the default currency.
func (c *Config) ScheduledCurrencies() []string {
	if len(c.ForecastCurrencies) == 0 {
		return []string{c.DefaultCurrency}
	}
	return c.ForecastCurrencies
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if u, err := strconv.ParseUint(value, 10, 64); err == nil {
			return u
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
