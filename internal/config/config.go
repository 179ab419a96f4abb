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

	"github.com/spf13/viper"

	"finboard/internal/log"
)

type Config struct {
	// HTTP Server
	Port string

	// Remote finance API
	APIBaseURL string
	APITimeout time.Duration

	// Saved views store
	SQLiteDBPath string

	// AMQP change notifications (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export
	ExportBackend            string
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Caches and sessions
	SnapshotCacheSize int
	SnapshotCacheTTL  time.Duration
	SessionTTL        time.Duration
	CookieSecure      bool

	// Session backend: memory (single instance) or redis (shared)
	SessionBackend string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Rate limiting, requests per client per minute. Zero disables it.
	RateLimitPerMinute int

	// Presentation
	Timezone string
	Currency string

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	validExportBackends  = []string{"memory", "sheets"}
	validSessionBackends = []string{"memory", "redis"}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("api_base_url", "http://localhost:9090")
	v.SetDefault("api_timeout", "7s")
	v.SetDefault("sqlite_db_path", "./data/finboard.db")
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "finboard")
	v.SetDefault("amqp_queue", "transactions_changed")
	v.SetDefault("export_backend", "memory")
	v.SetDefault("google_spreadsheet_id", "")
	v.SetDefault("google_service_account_json", "")
	v.SetDefault("google_service_account_file", "")
	v.SetDefault("snapshot_cache_size", 200)
	v.SetDefault("snapshot_cache_ttl", "2m")
	v.SetDefault("session_ttl", "12h")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("session_backend", "memory")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("rate_limit_per_minute", 120)
	v.SetDefault("timezone", "Asia/Colombo")
	v.SetDefault("currency", "LKR")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads configuration from the environment and, when FINBOARD_CONFIG
// points at one, a config file. Environment values win over the file.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("FINBOARD_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Port:                     v.GetString("port"),
		APIBaseURL:               strings.TrimRight(v.GetString("api_base_url"), "/"),
		APITimeout:               v.GetDuration("api_timeout"),
		SQLiteDBPath:             v.GetString("sqlite_db_path"),
		AMQPURL:                  v.GetString("amqp_url"),
		AMQPExchange:             v.GetString("amqp_exchange"),
		AMQPQueue:                v.GetString("amqp_queue"),
		ExportBackend:            v.GetString("export_backend"),
		GoogleSpreadsheetID:      v.GetString("google_spreadsheet_id"),
		GoogleServiceAccountJSON: v.GetString("google_service_account_json"),
		GoogleServiceAccountFile: v.GetString("google_service_account_file"),
		SnapshotCacheSize:        v.GetInt("snapshot_cache_size"),
		SnapshotCacheTTL:         v.GetDuration("snapshot_cache_ttl"),
		SessionTTL:               v.GetDuration("session_ttl"),
		CookieSecure:             v.GetBool("cookie_secure"),
		SessionBackend:           v.GetString("session_backend"),
		RedisAddr:                v.GetString("redis_addr"),
		RedisPassword:            v.GetString("redis_password"),
		RedisDB:                  v.GetInt("redis_db"),
		RateLimitPerMinute:       v.GetInt("rate_limit_per_minute"),
		Timezone:                 v.GetString("timezone"),
		Currency:                 v.GetString("currency"),
		LogLevel:                 v.GetString("log_level"),
		LogFormat:                v.GetString("log_format"),
	}
	return cfg, nil
}

// Location resolves Timezone. Validate has already rejected bad names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if parsed, err := url.Parse(c.APIBaseURL); err != nil || c.APIBaseURL == "" {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s'", c.APIBaseURL))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
	}
	if c.APITimeout < 100*time.Millisecond || c.APITimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be between 100ms and 2m", c.APITimeout))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
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

	if !slices.Contains(validExportBackends, c.ExportBackend) {
		errors = append(errors, fmt.Sprintf("invalid export backend '%s': must be one of %v", c.ExportBackend, validExportBackends))
	}
	if c.ExportBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets export")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.SnapshotCacheSize < 1 || c.SnapshotCacheSize > 10000 {
		errors = append(errors, fmt.Sprintf("invalid snapshot cache size %d: must be between 1 and 10000", c.SnapshotCacheSize))
	}
	if c.SnapshotCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid snapshot cache TTL %v: must be at least 1 second", c.SnapshotCacheTTL))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if !slices.Contains(validSessionBackends, c.SessionBackend) {
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of %v", c.SessionBackend, validSessionBackends))
	}
	if c.SessionBackend == "redis" {
		if c.RedisAddr == "" {
			errors = append(errors, "Redis address is required when using redis sessions")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			errors = append(errors, fmt.Sprintf("invalid Redis DB %d: must be between 0 and 15", c.RedisDB))
		}
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
