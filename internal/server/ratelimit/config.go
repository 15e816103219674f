package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for one endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method
	Limit  int           // Maximum requests per window; <= 0 means unmetered
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// LoadConfig builds the rate limiting configuration. The caller supplies the
// enabled flag and scrape budget; the remaining knobs come from environment
// variables. A non-positive scrapeLimit falls back to 60 per minute.
func LoadConfig(enabled bool, scrapeLimit int) *Config {
	if !enabled {
		return &Config{Enabled: false}
	}

	if scrapeLimit <= 0 {
		scrapeLimit = 60
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(getEnvString("RATE_LIMIT_WHITELIST", "")),
		Blacklist:       parseIPList(getEnvString("RATE_LIMIT_BLACKLIST", "")),
		EndpointConfigs: DefaultEndpointConfigs(scrapeLimit),
	}
}

// DefaultEndpointConfigs returns the per-endpoint limits. The live scrape
// endpoint fans out to external boards on every miss, so it carries the
// configured per-minute budget; stored reads are cheap database queries and
// only fall under the generous default limit.
func DefaultEndpointConfigs(scrapeLimit int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/api/v1/jobs", Method: "GET", Limit: scrapeLimit, Window: time.Minute, Burst: scrapeLimit},

		{Path: "/api/v1/jobs/stored", Method: "GET", Limit: 300, Window: time.Minute},
		{Path: "/api/v1/logs", Method: "GET", Limit: 300, Window: time.Minute},
	}
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

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}
	return result
}
