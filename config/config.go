package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BaseURL      string
	FetchMode    string
	FetchTimeout time.Duration
	MaxRetries   int
	ChromeBin    string

	RedisURL     string
	PageCacheTTL time.Duration

	RawCSVPath  string
	ArchiveDSN  string
	MetricsFile string

	ServerPort         string
	GinRelease         bool
	DeviationThreshold float64
	LogLevel           string

	MaxConcurrency int
	RateLimitMs    int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	return &Config{
		BaseURL:      strings.TrimRight(getEnv("CARINFO_BASE_URL", "https://www.car.info"), "/"),
		FetchMode:    strings.ToLower(getEnv("FETCH_MODE", FetchModeHTTP)),
		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		MaxRetries:   getEnvInt("MAX_RETRIES", 3),
		ChromeBin:    getEnv("CHROME_BIN", ""),

		RedisURL:     getEnv("REDIS_URL", ""),
		PageCacheTTL: getEnvDuration("PAGE_CACHE_TTL", 15*time.Minute),

		RawCSVPath:  getEnv("RAW_CSV_PATH", ""),
		ArchiveDSN:  getEnv("ARCHIVE_DSN", ""),
		MetricsFile: getEnv("METRICS_TEXTFILE", ""),

		ServerPort:         getEnv("SERVER_PORT", "8080"),
		GinRelease:         getEnvBool("GIN_RELEASE", false),
		DeviationThreshold: getEnvFloat("DEVIATION_THRESHOLD", 0.15),
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.DeviationThreshold <= 0 {
		return fmt.Errorf("config: DEVIATION_THRESHOLD must be positive, got %v", c.DeviationThreshold)
	}
	if c.FetchMode != FetchModeHTTP && c.FetchMode != FetchModeBrowser {
		return fmt.Errorf("config: FETCH_MODE must be %q or %q, got %q", FetchModeHTTP, FetchModeBrowser, c.FetchMode)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("config: FETCH_TIMEOUT must be positive, got %v", c.FetchTimeout)
	}
	return nil
}

// RateLimit is the minimum spacing between page fetches in batch runs.
func (c *Config) RateLimit() time.Duration {
	return time.Duration(c.RateLimitMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("10s") or bare seconds ("10").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
