// Package config provides configuration loading for the scraper service.
// Runtime settings come from environment variables; saved searches come from
// an optional JSON file validated against an embedded schema.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the runtime configuration of the service.
type Config struct {
	Port        int    // HTTP listen port
	DatabaseURL string // PostgreSQL connection URL
	RedisURL    string // Redis connection URL; empty disables response caching

	CacheTTL      time.Duration // How long scrape responses stay cached
	ScrapeTimeout time.Duration // Per-request deadline for a full scrape run

	RateLimitPerMinute int  // Requests per minute per client on scrape endpoints
	RateLimitEnabled   bool // Whether request rate limiting is active

	ScrapeIntervalHours int    // Background re-scrape interval; 0 disables the scheduler
	SavedSearchesPath   string // Path to the saved searches JSON file

	UseBrowser bool // Use headless browser for JS-heavy boards
	Verbose    bool // Print detailed debug information
}

// Load reads configuration from environment variables, applying defaults
// for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnvInt("PORT", 8080),
		DatabaseURL:         getEnvString("DATABASE_URL", ""),
		RedisURL:            getEnvString("REDIS_URL", ""),
		CacheTTL:            time.Duration(getEnvInt("CACHE_EXPIRE_SECONDS", 300)) * time.Second,
		ScrapeTimeout:       getEnvDuration("SCRAPE_TIMEOUT", 45*time.Second),
		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitEnabled:    getEnvBool("RATE_LIMIT_ENABLED", true),
		ScrapeIntervalHours: getEnvInt("SCRAPE_INTERVAL_HOURS", 0),
		SavedSearchesPath:   getEnvString("SAVED_SEARCHES_FILE", ""),
		UseBrowser:          getEnvBool("USE_BROWSER", false),
		Verbose:             getEnvBool("VERBOSE", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RateLimitPerMinute <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", cfg.RateLimitPerMinute)
	}
	if cfg.ScrapeIntervalHours < 0 {
		return nil, fmt.Errorf("SCRAPE_INTERVAL_HOURS must be non-negative, got %d", cfg.ScrapeIntervalHours)
	}

	return cfg, nil
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
