package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tracker/internal/pipeline"
)

// Source backends.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
	BackendGoogle = "google"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Workbook source
	SourceBackend  string
	SourcePath     string
	SourceURL      string
	SourceRetries  int
	SourceMaxBytes int64
	LoadTimeout    time.Duration
	CacheTTL       time.Duration

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Sheet policy
	SheetAllow        []string
	SheetDeny         []string
	SheetDenyContains []string

	// Export audit (empty path disables)
	AuditDBPath string

	// AMQP (empty URL disables)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		SourceBackend:  strings.ToLower(getEnv("SOURCE_BACKEND", BackendLocal)),
		SourcePath:     getEnv("SOURCE_PATH", "Project_Dashboard_Data.xlsx"),
		SourceURL:      getEnv("SOURCE_URL", ""),
		SourceRetries:  getEnvInt("SOURCE_RETRIES", 0),
		SourceMaxBytes: int64(getEnvInt("SOURCE_MAX_BYTES", 50<<20)),
		LoadTimeout:    getEnvDuration("LOAD_TIMEOUT", 30*time.Second),
		CacheTTL:       getEnvDuration("CACHE_TTL", 300*time.Second),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SheetAllow:        getEnvList("SHEET_ALLOW", nil),
		SheetDeny:         getEnvList("SHEET_DENY", pipeline.DefaultSheetPolicy().Deny),
		SheetDenyContains: getEnvList("SHEET_DENY_CONTAINS", nil),

		AuditDBPath: getEnv("AUDIT_DB_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tracker"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "exports"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Location is the descriptor handed to the configured source loader.
func (c *Config) Location() string {
	switch c.SourceBackend {
	case BackendRemote:
		return c.SourceURL
	case BackendGoogle:
		return c.GoogleSpreadsheetID
	}
	return c.SourcePath
}

// SheetPolicy builds the sheet inclusion rule.
func (c *Config) SheetPolicy() pipeline.SheetPolicy {
	return pipeline.SheetPolicy{
		Allow:        c.SheetAllow,
		Deny:         c.SheetDeny,
		DenyContains: c.SheetDenyContains,
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

	switch c.SourceBackend {
	case BackendLocal:
		if strings.TrimSpace(c.SourcePath) == "" {
			errors = append(errors, "SOURCE_PATH cannot be empty when using local backend")
		}
	case BackendRemote:
		if c.SourceURL == "" {
			errors = append(errors, "SOURCE_URL is required when using remote backend")
		} else if u, err := url.Parse(c.SourceURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid SOURCE_URL '%s': %v", c.SourceURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid SOURCE_URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	case BackendGoogle:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "GOOGLE_SPREADSHEET_ID is required when using google backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "google backend needs GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	default:
		validBackends := []string{BackendLocal, BackendRemote, BackendGoogle}
		errors = append(errors, fmt.Sprintf("invalid source backend '%s': must be one of %v", c.SourceBackend, validBackends))
	}

	if c.SourceRetries < 0 || c.SourceRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid source retries %d: must be between 0 and 10", c.SourceRetries))
	}
	if c.SourceMaxBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid source max bytes %d: must be positive", c.SourceMaxBytes))
	}
	if c.LoadTimeout < time.Second || c.LoadTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid load timeout %v: must be between 1s and 10m", c.LoadTimeout))
	}
	if c.CacheTTL < 0 || c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be between 0 and 24 hours", c.CacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if c.AuditDBPath != "" {
		dir := filepath.Dir(c.AuditDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create audit database directory '%s': %v", dir, err))
				}
			}
		}
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
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
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

// getEnvDuration accepts Go durations ("5m") or plain seconds ("300").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if s, err := strconv.Atoi(value); err == nil {
		return time.Duration(s) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable. A variable that is set but
// empty yields an empty list, so defaults can be switched off.
func getEnvList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
