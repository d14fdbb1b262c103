// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	AllowedOrigins  []string
	LogLevel        string
	PersonaPath     string
	Platform        PlatformConfig
	Store           StoreConfig
	ConversationLog ConversationLogConfig
	CallWatch       CallWatchConfig
}

// PlatformConfig is the voice-agent platform credential context.
type PlatformConfig struct {
	APIKey  string
	BaseURL string
	// Timeout bounds each platform request. Zero means no client timeout.
	Timeout time.Duration
}

// StoreConfig selects the durable backend.
type StoreConfig struct {
	Driver string // "memory" or "sqlite"
	DBPath string
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// CallWatchConfig tunes call status polling.
type CallWatchConfig struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Timeout     time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	apiKey := getEnv("PLATFORM_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("BLAND_API_KEY", "")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "3001"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		PersonaPath:    getEnv("PERSONA_PATH", ""),
		Platform: PlatformConfig{
			APIKey:  apiKey,
			BaseURL: getEnv("PLATFORM_BASE_URL", "https://api.bland.ai/v1"),
			Timeout: getEnvDuration("PLATFORM_TIMEOUT", 0),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", "memory")),
			DBPath: getEnv("DB_PATH", "./data/tradevoice.db"),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
		CallWatch: CallWatchConfig{
			Interval:    getEnvDuration("CALL_WATCH_INTERVAL", 2*time.Second),
			MaxInterval: getEnvDuration("CALL_WATCH_MAX_INTERVAL", 15*time.Second),
			Timeout:     getEnvDuration("CALL_WATCH_TIMEOUT", 45*time.Minute),
		},
	}

	if cfg.FrontendURL != "" && os.Getenv("CORS_ALLOWED_ORIGINS") == "" {
		cfg.AllowedOrigins = []string{cfg.FrontendURL}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set. A missing
// platform API key is allowed; the platform rejects the first request.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("PLATFORM_BASE_URL cannot be empty")
	}
	if c.Platform.Timeout < 0 {
		return fmt.Errorf("PLATFORM_TIMEOUT cannot be negative")
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be memory or sqlite, got %q", c.Store.Driver)
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalEnabled && c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	if c.CallWatch.Interval <= 0 || c.CallWatch.MaxInterval < c.CallWatch.Interval {
		return fmt.Errorf("CALL_WATCH_MAX_INTERVAL must be >= CALL_WATCH_INTERVAL > 0")
	}
	if c.CallWatch.Timeout <= 0 {
		return fmt.Errorf("CALL_WATCH_TIMEOUT must be > 0")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare integers are milliseconds, as the platform SDKs use.
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
