package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment configuration for the engine. Pipeline tuning
// (thresholds, tiers, symbol universe) lives in the strategy YAML, not here.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data gateway
	MarketData MarketDataConfig

	// Sentiment enrichment
	Sentiment SentimentConfig

	// Engine runtime
	Engine EngineConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// MarketDataConfig holds the market data gateway configuration.
type MarketDataConfig struct {
	BaseURL        string
	RequestTimeout time.Duration // per-call wall clock budget
	RateLimit      int           // requests per second
	CandleInterval string        // e.g. "5m"
	CacheTTL       time.Duration // live price cache TTL
}

// SentimentConfig holds the sentiment index scraper configuration.
type SentimentConfig struct {
	URL      string
	Enabled  bool
	CacheTTL time.Duration
}

// EngineConfig holds engine runtime knobs that are operational rather than
// strategy tuning.
type EngineConfig struct {
	StrategyFile  string        // path to strategy YAML
	EvalSchedule  string        // cron spec for the evaluation loop
	TierSchedule  string        // cron spec for tier scheduler ticks
	PollInterval  time.Duration // outcome tracker price poll interval
	ResumeOnStart bool          // resume ACTIVE signals on boot
}

// Load reads configuration from environment variables, loading .env first
// when present.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		MarketData: MarketDataConfig{
			BaseURL:        getEnv("MARKETDATA_BASE_URL", "https://api.binance.com"),
			RequestTimeout: getEnvAsDuration("MARKETDATA_TIMEOUT", "5s"),
			RateLimit:      getEnvAsInt("MARKETDATA_RATE_LIMIT", 10),
			CandleInterval: getEnv("MARKETDATA_CANDLE_INTERVAL", "5m"),
			CacheTTL:       getEnvAsDuration("MARKETDATA_CACHE_TTL", "3s"),
		},

		Sentiment: SentimentConfig{
			URL:      getEnv("SENTIMENT_URL", "https://alternative.me/crypto/fear-and-greed-index/"),
			Enabled:  getEnvAsBool("SENTIMENT_ENABLED", true),
			CacheTTL: getEnvAsDuration("SENTIMENT_CACHE_TTL", "30m"),
		},

		Engine: EngineConfig{
			StrategyFile:  getEnv("STRATEGY_FILE", "config/strategy/ignitex_v1.yaml"),
			EvalSchedule:  getEnv("EVAL_SCHEDULE", "0 */2 * * * *"), // every 2 minutes
			TierSchedule:  getEnv("TIER_SCHEDULE", "0 * * * * *"),   // every minute
			PollInterval:  getEnvAsDuration("TRACKER_POLL_INTERVAL", "5s"),
			ResumeOnStart: getEnvAsBool("RESUME_ON_START", true),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.MarketData.RequestTimeout <= 0 {
		return fmt.Errorf("MARKETDATA_TIMEOUT must be positive")
	}

	if c.Engine.PollInterval <= 0 {
		return fmt.Errorf("TRACKER_POLL_INTERVAL must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
