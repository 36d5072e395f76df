package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Server
	Port           string
	TrustedProxies []string
	AllowedOrigins []string

	// Upstream inspections API
	APIBaseURL      string
	APITimeout      time.Duration
	RefreshInterval time.Duration

	// Push channels
	AMQPURL      string
	AMQPExchange string
	// RealtimeURL is a socket.io v4 websocket endpoint
	// (.../socket.io/?EIO=4&transport=websocket) or a plain websocket.
	RealtimeURL       string
	RealtimeNamespace string

	// Dashboard view cache
	CacheSize int
	CacheTTL  time.Duration

	RateLimitPerMinute int
	LogLevel           string
}

// LoadDotEnv loads variables from the given files (".env" when none) without
// overriding the real environment. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES", []string{"127.0.0.1", "::1"}),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", nil),

		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:5000/api"),
		APITimeout:      getEnvDuration("API_TIMEOUT", 30*time.Second),
		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 5*time.Minute),

		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "inspections"),
		RealtimeURL:       getEnv("REALTIME_URL", ""),
		RealtimeNamespace: getEnv("REALTIME_NAMESPACE", "/"),

		CacheSize: getEnvInt("CACHE_SIZE", 128),
		CacheTTL:  getEnvDuration("CACHE_TTL", 10*time.Minute),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.APIBaseURL == "" {
		problems = append(problems, "API base URL is required")
	} else if u, err := url.Parse(c.APIBaseURL); err != nil {
		problems = append(problems, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		problems = append(problems, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}

	if c.APITimeout <= 0 || c.APITimeout > 5*time.Minute {
		problems = append(problems, fmt.Sprintf("invalid API timeout %v: must be between 0 and 5 minutes", c.APITimeout))
	}

	// Zero disables periodic refresh.
	if c.RefreshInterval != 0 {
		if c.RefreshInterval < 10*time.Second {
			problems = append(problems, fmt.Sprintf("invalid refresh interval %v: must be at least 10 seconds", c.RefreshInterval))
		} else if c.RefreshInterval > 24*time.Hour {
			problems = append(problems, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RealtimeURL != "" {
		if u, err := url.Parse(c.RealtimeURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid realtime URL '%s': %v", c.RealtimeURL, err))
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			problems = append(problems, fmt.Sprintf("invalid realtime URL scheme '%s': must be 'ws' or 'wss'", u.Scheme))
		}
		if c.RealtimeNamespace != "" && !strings.HasPrefix(c.RealtimeNamespace, "/") {
			problems = append(problems, fmt.Sprintf("invalid realtime namespace '%s': must start with '/'", c.RealtimeNamespace))
		}
	}

	if c.CacheSize < 1 || c.CacheSize > 100000 {
		problems = append(problems, fmt.Sprintf("invalid cache size %d: must be between 1 and 100000", c.CacheSize))
	}
	if c.CacheTTL < 0 {
		problems = append(problems, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}

	if c.RateLimitPerMinute < 1 {
		problems = append(problems, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if _, ok := logLevels[c.LogLevel]; !ok {
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	if l, ok := logLevels[c.LogLevel]; ok {
		return l
	}
	return slog.LevelInfo
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
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
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
