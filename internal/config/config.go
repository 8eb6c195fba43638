package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Stream  StreamConfig
	Rest    RestConfig
	Service ServiceConfig
	Redis   RedisConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	HTTPPort    int
	Environment string
}

type StreamConfig struct {
	URL          string
	Channel      string
	PingInterval time.Duration
	// Teardown retry policy. MaxCloseAttempts 0 means retry forever.
	CloseRetryInterval time.Duration
	MaxCloseAttempts   int
}

type RestConfig struct {
	BaseURL string
	Timeout time.Duration
}

type ServiceConfig struct {
	DefaultPageSize int
	DefaultMarket   string
	SeedFile        string
	Verbose         bool
}

type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	ChannelPrefix string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			HTTPPort:    getEnvInt("HTTP_PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Stream: StreamConfig{
			URL:                getEnv("OKX_STREAM_URL", "wss://ws.okx.com:8443/ws/v5/public"),
			Channel:            getEnv("OKX_STREAM_CHANNEL", "tickers"),
			PingInterval:       parseDuration(getEnv("STREAM_PING_INTERVAL", "20s"), 20*time.Second),
			CloseRetryInterval: parseDuration(getEnv("CLOSE_RETRY_INTERVAL", "300ms"), 300*time.Millisecond),
			MaxCloseAttempts:   getEnvInt("MAX_CLOSE_ATTEMPTS", 0),
		},
		Rest: RestConfig{
			BaseURL: getEnv("OKX_REST_URL", "https://www.okx.com/api/v5/public/instruments?instType="),
			Timeout: parseDuration(getEnv("REST_TIMEOUT", "10s"), 10*time.Second),
		},
		Service: ServiceConfig{
			DefaultPageSize: getEnvInt("DEFAULT_PAGE_SIZE", 10),
			DefaultMarket:   getEnv("DEFAULT_MARKET_TYPE", "SPOT"),
			SeedFile:        getEnv("INSTRUMENT_SEED_FILE", ""),
			Verbose:         getEnvBool("VERBOSE", false),
		},
		Redis: RedisConfig{
			Enabled:       getEnvBool("REDIS_ENABLED", false),
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			ChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "okx:market:ticker:"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Stream.URL == "" {
		return fmt.Errorf("OKX_STREAM_URL is required")
	}
	if !strings.HasPrefix(c.Stream.URL, "ws://") && !strings.HasPrefix(c.Stream.URL, "wss://") {
		return fmt.Errorf("OKX_STREAM_URL must be a ws:// or wss:// URL")
	}
	if c.Rest.BaseURL == "" {
		return fmt.Errorf("OKX_REST_URL is required")
	}
	if c.Stream.CloseRetryInterval <= 0 {
		return fmt.Errorf("CLOSE_RETRY_INTERVAL must be positive")
	}
	if c.Stream.MaxCloseAttempts < 0 {
		return fmt.Errorf("MAX_CLOSE_ATTEMPTS must not be negative")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required when REDIS_ENABLED=true")
	}
	return nil
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}
