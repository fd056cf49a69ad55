package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string
	DataDir     string

	// Database
	SQLiteDBPath string

	// Upstream warehouse for refreshes
	UpstreamDatabaseURL string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	CSVExportBaseURL         string

	// Cache
	RedisAddr       string
	CacheTTL        time.Duration
	CacheMaxEntries int

	// Worker
	RefreshInterval  time.Duration
	RefreshBatchSize int
	// MaxRefreshAge marks a dataset stale at worker startup.
	MaxRefreshAge time.Duration
	// SnapshotPollInterval is how often the server checks the refresh
	// history for datasets the worker replaced.
	SnapshotPollInterval time.Duration
	WorkerMetricsPort    string

	// Scope
	FocusMunicipality string
	Municipalities    []string
	Years             []int

	// TrustedProxies are CIDRs whose X-Forwarded-For is believed, in
	// addition to loopback and private networks.
	TrustedProxies []string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend: getEnv("DATA_BACKEND", "memory"),
		DataDir:     getEnv("DATA_DIR", "./data/seed"),

		SQLiteDBPath:        getEnv("SQLITE_DB_PATH", "./data/indicadores.db"),
		UpstreamDatabaseURL: getEnv("UPSTREAM_DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "indicadores"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "dataset_refresh"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		CSVExportBaseURL:         getEnv("CSV_EXPORT_BASE_URL", "https://docs.google.com/spreadsheets/d"),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		CacheTTL:        getEnvDuration("CACHE_TTL", 24*time.Hour),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 256),

		RefreshInterval:  getEnvDuration("REFRESH_INTERVAL", 6*time.Hour),
		RefreshBatchSize: getEnvInt("REFRESH_BATCH_SIZE", 500),
		MaxRefreshAge:    getEnvDuration("MAX_REFRESH_AGE", 24*time.Hour),

		SnapshotPollInterval: getEnvDuration("SNAPSHOT_POLL_INTERVAL", 30*time.Second),
		WorkerMetricsPort:    getEnv("WORKER_METRICS_PORT", ""),

		FocusMunicipality: getEnv("FOCUS_MUNICIPALITY", "São Leopoldo"),
		Municipalities:    getEnvList("MUNICIPALITIES", []string{"Canoas", "Novo Hamburgo", "São Leopoldo", "Gravataí"}),
		Years:             getEnvYears("YEARS", yearRange(2021, 2025)),

		TrustedProxies: getEnvList("TRUSTED_PROXIES", nil),

		LogLevel: getEnv("LOG_LEVEL", "info"),
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

	// Validate data backend
	validBackends := []string{"memory", "sqlite", "sheets", "csv"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "memory":
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using memory backend")
		}
	case "sqlite":
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
	case "sheets":
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	case "csv":
		if u, err := url.Parse(c.CSVExportBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid CSV export base URL '%s'", c.CSVExportBaseURL))
		}
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

	if c.UpstreamDatabaseURL != "" {
		if u, err := url.Parse(c.UpstreamDatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid upstream database URL: must use the postgres:// scheme")
		}
	}

	// Validate cache configuration
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.CacheMaxEntries < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheMaxEntries))
	}

	// Validate worker configuration
	if c.RefreshBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid refresh batch size %d: must be at least 1", c.RefreshBatchSize))
	} else if c.RefreshBatchSize > 5000 {
		errors = append(errors, fmt.Sprintf("invalid refresh batch size %d: must be at most 5000", c.RefreshBatchSize))
	}

	if c.RefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 minute", c.RefreshInterval))
	} else if c.RefreshInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 7 days", c.RefreshInterval))
	}

	if c.SnapshotPollInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid snapshot poll interval %v: must be at least 1 second", c.SnapshotPollInterval))
	}
	if c.WorkerMetricsPort != "" {
		if port, err := strconv.Atoi(c.WorkerMetricsPort); err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid worker metrics port '%s'", c.WorkerMetricsPort))
		}
	}

	// Validate scope
	if strings.TrimSpace(c.FocusMunicipality) == "" {
		errors = append(errors, "focus municipality cannot be empty")
	}
	if len(c.Years) == 0 {
		errors = append(errors, "at least one year must be configured")
	}

	for _, cidr := range c.TrustedProxies {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// TrustedProxyPrefixes parses TrustedProxies, skipping invalid entries.
func (c *Config) TrustedProxyPrefixes() []netip.Prefix {
	var out []netip.Prefix
	for _, cidr := range c.TrustedProxies {
		if p, err := netip.ParsePrefix(cidr); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// ScopeMunicipalities returns the configured municipalities, always
// including the focus municipality.
func (c *Config) ScopeMunicipalities() []string {
	for _, m := range c.Municipalities {
		if m == c.FocusMunicipality {
			return c.Municipalities
		}
	}
	return append([]string{c.FocusMunicipality}, c.Municipalities...)
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvYears accepts "2021-2025" or "2021,2023,2024".
func getEnvYears(key string, defaultValue []int) []int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if from, to, ok := strings.Cut(value, "-"); ok {
		a, err1 := strconv.Atoi(strings.TrimSpace(from))
		b, err2 := strconv.Atoi(strings.TrimSpace(to))
		if err1 != nil || err2 != nil || b < a {
			return defaultValue
		}
		return yearRange(a, b)
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, y)
	}
	return out
}

func yearRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		out = append(out, y)
	}
	return out
}
