package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/MimeLyc/study-assistant/pkg/log"
)

// Config holds all application configuration
// Values come from environment variables (optionally seeded from a .env
// file) with sensible defaults, then runtime settings overrides.
//
// Environment Variables:
// Backend:
// - BACKEND_URL: Base URL of the processing backend (default: http://localhost:8000)
// - BACKEND_TIMEOUT: Per-request timeout in seconds (default: 60)
//
// Polling:
// - POLL_INTERVAL: Interval between status queries (default: 2s)
// - POLL_MAX_ATTEMPTS: Give up after this many queries, 0 = never (default: 0)
//
// HTTP (web UI):
// - HTTP_ADDR: Listen address (default: :8080)
// - UI_ENABLED: Serve the HTML views (default: true)
// - UPLOAD_RPS: Uploads per second per client IP, 0 = unlimited (default: 1)
// - MAX_UPLOAD_MB: Maximum multipart body size (default: 50)
//
// Inbox:
// - INBOX_DIR: Folder scanned for new PDFs, empty disables the inbox
// - INBOX_CRON: Scan schedule (default: */5 * * * *)
// - INBOX_WATCH: Also scan on filesystem events (default: false)
// - INBOX_CONCURRENCY: Parallel submissions per scan (default: 2)
//
// System:
// - DATA_DIR: Directory for the local state database (default: ./data)
// - LOG_LEVEL: debug, info, warn, error (default: info)
// - UI_LANGUAGE: es, en or auto (default: es)
type Config struct {
	Backend BackendConfig `json:"backend"`
	Poll    PollConfig    `json:"poll"`
	HTTP    HTTPConfig    `json:"http"`
	Inbox   InboxConfig   `json:"inbox"`
	System  SystemConfig  `json:"system"`
}

// BackendConfig locates the processing backend.
type BackendConfig struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout"` // seconds
}

type PollConfig struct {
	Interval    time.Duration `json:"interval"`
	MaxAttempts int           `json:"max_attempts"`
}

type HTTPConfig struct {
	Addr        string `json:"addr"`
	UIEnabled   bool   `json:"ui_enabled"`
	UploadRPS   int    `json:"upload_rps"`
	MaxUploadMB int    `json:"max_upload_mb"`
}

type InboxConfig struct {
	Dir         string `json:"dir"`
	CronExpr    string `json:"cron_expr"`
	Watch       bool   `json:"watch"`
	Concurrency int    `json:"concurrency"`
}

// Enabled reports whether an inbox folder is configured.
func (c InboxConfig) Enabled() bool {
	return strings.TrimSpace(c.Dir) != ""
}

type SystemConfig struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	Language string `json:"language"`
}

// LanguageAuto selects the label language from the rendered content.
const LanguageAuto = "auto"

// DBPath is the location of the local key-value state database.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "study-assistant.db")
}

// Option is a function type for configuring Config
type Option func(*Config)

// LoadEnvFile seeds the process environment from a dotenv file. Variables
// already present in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Backend: BackendConfig{
			URL:     strings.TrimRight(getEnvString("BACKEND_URL", "http://localhost:8000"), "/"),
			Timeout: getEnvInt("BACKEND_TIMEOUT", 60),
		},
		Poll: PollConfig{
			Interval:    getEnvDuration("POLL_INTERVAL", 2*time.Second),
			MaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 0),
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8080"),
			UIEnabled:   getEnvBool("UI_ENABLED", true),
			UploadRPS:   getEnvInt("UPLOAD_RPS", 1),
			MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 50),
		},
		Inbox: InboxConfig{
			Dir:         getEnvString("INBOX_DIR", ""),
			CronExpr:    getEnvString("INBOX_CRON", "*/5 * * * *"),
			Watch:       getEnvBool("INBOX_WATCH", false),
			Concurrency: getEnvInt("INBOX_CONCURRENCY", 2),
		},
		System: SystemConfig{
			DataDir:  getEnvString("DATA_DIR", "data"),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
			Language: strings.ToLower(getEnvString("UI_LANGUAGE", "es")),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", *config)
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute http(s) URL, got %q", c.Backend.URL)
	}
	if c.Backend.Timeout < 1 {
		return fmt.Errorf("BACKEND_TIMEOUT must be greater than 0")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Poll.MaxAttempts < 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must not be negative")
	}
	if c.HTTP.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be greater than 0")
	}
	if c.Inbox.Enabled() {
		if _, err := cron.ParseStandard(c.Inbox.CronExpr); err != nil {
			return fmt.Errorf("INBOX_CRON: %w", err)
		}
		if c.Inbox.Concurrency < 1 {
			return fmt.Errorf("INBOX_CONCURRENCY must be greater than 0")
		}
	}
	if c.System.Language != LanguageAuto {
		if _, err := language.Parse(c.System.Language); err != nil {
			return fmt.Errorf("UI_LANGUAGE: %w", err)
		}
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("2s", "500ms") or bare seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
