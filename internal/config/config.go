package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/currency"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend    string
	SQLiteDBPath   string
	MemorySeedFile string // JSON seed; also imported into SQLite when set

	// Reporting
	BaseCurrency      string
	FallbackRates     string // "USD=36.5,EUR=39.2"
	ManagementCode    string
	FeeCategoryCode   string
	DedupeTolerance   string
	ReportConcurrency int
	ReportCacheSize   int
	ReportCacheTTL    time.Duration

	// AMQP
	AMQPURL               string
	AMQPExchange          string
	AMQPRequestQueue      string
	AMQPRequestRoutingKey string
	AMQPResultRoutingKey  string

	// Google Sheets petty cash (optional incidental source)
	GoogleSpreadsheetID      string
	GooglePettyCashSheet     string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleCacheTTL           time.Duration
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:    getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/reports.db"),
		MemorySeedFile: getEnv("MEMORY_SEED_FILE", ""),

		BaseCurrency:      strings.ToUpper(getEnv("BASE_CURRENCY", "THB")),
		FallbackRates:     getEnv("FALLBACK_RATES", ""),
		ManagementCode:    getEnv("MANAGEMENT_PROJECT_CODE", "MGMT"),
		FeeCategoryCode:   getEnv("MANAGEMENT_FEE_CATEGORY", "management_fee"),
		DedupeTolerance:   getEnv("DEDUPE_TOLERANCE", "1.00"),
		ReportConcurrency: getEnvInt("REPORT_CONCURRENCY", 4),
		ReportCacheSize:   getEnvInt("REPORT_CACHE_SIZE", 256),
		ReportCacheTTL:    getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),

		AMQPURL:               getEnv("AMQP_URL", ""),
		AMQPExchange:          getEnv("AMQP_EXCHANGE", "reports"),
		AMQPRequestQueue:      getEnv("AMQP_REQUEST_QUEUE", "report_requests"),
		AMQPRequestRoutingKey: getEnv("AMQP_REQUEST_ROUTING_KEY", "report.requested"),
		AMQPResultRoutingKey:  getEnv("AMQP_RESULT_ROUTING_KEY", "report.generated"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GooglePettyCashSheet:     getEnv("GOOGLE_PETTY_CASH_SHEET", "Petty Cash"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleCacheTTL:           getEnvDuration("GOOGLE_CACHE_TTL", 5*time.Minute),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if !currency.IsKnown(c.BaseCurrency) {
		errors = append(errors, fmt.Sprintf("invalid base currency '%s': not an ISO 4217 code", c.BaseCurrency))
	}
	if _, err := c.FallbackRateTable(); err != nil {
		errors = append(errors, err.Error())
	}
	if strings.TrimSpace(c.ManagementCode) == "" {
		errors = append(errors, "management project code cannot be empty")
	}
	if tol, err := decimal.NewFromString(c.DedupeTolerance); err != nil || tol.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid dedupe tolerance '%s': must be a non-negative decimal", c.DedupeTolerance))
	}
	if c.ReportConcurrency < 1 || c.ReportConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid report concurrency %d: must be between 1 and 64", c.ReportConcurrency))
	}
	if c.ReportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	}
	if c.ReportCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be at least 1 second", c.ReportCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRequestQueue == "" {
			errors = append(errors, "AMQP request queue cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided with GOOGLE_SPREADSHEET_ID")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// FallbackRateTable parses FallbackRates ("USD=36.5,EUR=39.2") into rates
// keyed by upper-case currency code.
func (c *Config) FallbackRateTable() (map[string]decimal.Decimal, error) {
	table := make(map[string]decimal.Decimal)
	if strings.TrimSpace(c.FallbackRates) == "" {
		return table, nil
	}
	for _, pair := range strings.Split(c.FallbackRates, ",") {
		code, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		code = strings.ToUpper(strings.TrimSpace(code))
		if !ok || code == "" {
			return nil, fmt.Errorf("invalid fallback rate '%s': want CODE=RATE", pair)
		}
		if !currency.IsKnown(code) {
			return nil, fmt.Errorf("invalid fallback rate '%s': unknown currency %s", pair, code)
		}
		rate, err := core.ParseRate(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid fallback rate '%s': %v", pair, err)
		}
		table[code] = rate
	}
	return table, nil
}

// Tolerance returns DedupeTolerance as a decimal, or zero when unparseable.
func (c *Config) Tolerance() decimal.Decimal {
	d, err := decimal.NewFromString(c.DedupeTolerance)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
