package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hlsproxy/work/logger"
)

// DefaultUserAgent is used when no usable User-Agent pool is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultAcceptLanguage is sent upstream when the caller has no Accept-Language.
const DefaultAcceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"

// Config holds all application configuration values for the HLS proxy.
// It is built once at startup and never mutated afterwards.
type Config struct {
	ListenAddr            string        `yaml:"listenAddr"`            // Address the HTTP server binds to
	CacheTTLSeconds       int           `yaml:"cacheTTL"`              // Cache lifetime in seconds (also used for Cache-Control)
	MaxRecursion          int           `yaml:"maxRecursion"`          // Deepest master-playlist chain that may be resolved
	UserAgents            []string      `yaml:"userAgents"`            // Pool of User-Agent strings for upstream requests
	AcceptLanguage        string        `yaml:"acceptLanguage"`        // Fallback Accept-Language for upstream requests
	Password              string        `yaml:"password"`              // Shared secret for proxy authorization
	AuthMaxAge            time.Duration `yaml:"authMaxAge"`            // Maximum age of a signed request timestamp
	Debug                 bool          `yaml:"debug"`                 // Enable debug logging
	LogLevel              string        `yaml:"logLevel"`              // Log level when debug is off
	LogFile               string        `yaml:"logFile"`               // Optional rotated JSON log file
	ObfuscateUrls         bool          `yaml:"obfuscateUrls"`         // Obfuscate URLs in logs
	Gzip                  bool          `yaml:"gzip"`                  // Compress proxy responses when the client accepts gzip
	CacheBackend          string        `yaml:"cacheBackend"`          // memory, sqlite, leveldb or none
	CachePath             string        `yaml:"cachePath"`             // File or directory for persistent backends
	CacheMaxEntries       int           `yaml:"cacheMaxEntries"`       // Size bound for the memory backend
	CacheWriteWorkers     int           `yaml:"cacheWriteWorkers"`     // Background workers for fire-and-forget cache writes
	UpstreamMaxRetries    int           `yaml:"upstreamMaxRetries"`    // Retries on transport errors and 5xx responses
	UpstreamRateLimit     int           `yaml:"upstreamRateLimit"`     // Requests per second per origin host, 0 disables
	UpstreamRetryWaitMin  time.Duration `yaml:"upstreamRetryWaitMin"`  // Minimum wait between retries
	UpstreamRetryWaitMax  time.Duration `yaml:"upstreamRetryWaitMax"`  // Maximum wait between retries
	ShutdownGraceDuration time.Duration `yaml:"shutdownGraceDuration"` // Time allowed for in-flight requests on shutdown
}

// CacheTTL returns the cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Load builds the configuration.
//
// Process:
//   - Starts from the built-in defaults.
//   - Overlays the YAML file at path, when one is given.
//   - Loads a .env file from the working directory if present.
//   - Overlays environment variables.
//   - Runs validation to ensure safe defaults.
func Load(path string) (*Config, error) {
	cfg := getDefaultConfig()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			logger.Warn("{config - Load} failed to load .env: %v", err)
		}
	}

	applyEnv(cfg, os.Getenv)
	validateAndSetDefaults(cfg)

	return cfg, nil
}

// loadFromFile reads and parses the configuration from a YAML file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return nil
}

// applyEnv overlays the environment variables understood by the proxy.
// Malformed numeric values are ignored and logged.
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("HLSPROXY_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := getenv("CACHE_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheTTLSeconds = n
		} else {
			logger.Warn("{config - applyEnv} invalid CACHE_TTL %q: %v", v, err)
		}
	}
	if v := getenv("MAX_RECURSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRecursion = n
		} else {
			logger.Warn("{config - applyEnv} invalid MAX_RECURSION %q: %v", v, err)
		}
	}
	if v := getenv("USER_AGENTS_JSON"); v != "" {
		cfg.UserAgents = parseUserAgents(v)
	}
	if v := getenv("DEBUG"); v != "" {
		cfg.Debug = v == "true"
	}
	if v := getenv("PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := getenv("CACHE_BACKEND"); v != "" {
		cfg.CacheBackend = strings.ToLower(v)
	}
	if v := getenv("CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// parseUserAgents decodes a JSON array of User-Agent strings. Anything other
// than a non-empty array yields the single default agent.
func parseUserAgents(raw string) []string {
	var agents []string
	if err := json.Unmarshal([]byte(raw), &agents); err != nil {
		logger.Debug("{config - parseUserAgents} failed to parse USER_AGENTS_JSON: %v, using default", err)
		return []string{DefaultUserAgent}
	}

	out := make([]string, 0, len(agents))
	for _, a := range agents {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		logger.Debug("{config - parseUserAgents} USER_AGENTS_JSON is empty, using default")
		return []string{DefaultUserAgent}
	}

	return out
}

// getDefaultConfig returns a baseline configuration
// with sensible defaults when nothing else is provided.
func getDefaultConfig() *Config {
	return &Config{
		ListenAddr:            ":8080",
		CacheTTLSeconds:       86400, // 24 hours
		MaxRecursion:          5,
		UserAgents:            []string{DefaultUserAgent},
		AcceptLanguage:        DefaultAcceptLanguage,
		AuthMaxAge:            10 * time.Minute,
		LogLevel:              "INFO",
		Gzip:                  true,
		CacheBackend:          "memory",
		CacheMaxEntries:       10000,
		CacheWriteWorkers:     16,
		UpstreamMaxRetries:    2,
		UpstreamRateLimit:     0,
		UpstreamRetryWaitMin:  200 * time.Millisecond,
		UpstreamRetryWaitMax:  2 * time.Second,
		ShutdownGraceDuration: 10 * time.Second,
	}
}

// validateAndSetDefaults ensures all config values are valid,
// filling in defaults for missing/invalid ones.
func validateAndSetDefaults(config *Config) {
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.CacheTTLSeconds <= 0 {
		config.CacheTTLSeconds = 86400
	}
	if config.MaxRecursion < 0 {
		config.MaxRecursion = 5
	}
	if len(config.UserAgents) == 0 {
		config.UserAgents = []string{DefaultUserAgent}
	}
	if config.AcceptLanguage == "" {
		config.AcceptLanguage = DefaultAcceptLanguage
	}
	if config.AuthMaxAge <= 0 {
		config.AuthMaxAge = 10 * time.Minute
	}
	if config.Debug {
		config.LogLevel = "DEBUG"
	}
	if config.LogLevel == "" {
		config.LogLevel = "INFO"
	}
	switch config.CacheBackend {
	case "memory", "sqlite", "leveldb", "none":
	default:
		logger.Warn("{config - validateAndSetDefaults} unknown cache backend %q, using memory", config.CacheBackend)
		config.CacheBackend = "memory"
	}
	if config.CachePath == "" {
		switch config.CacheBackend {
		case "sqlite":
			config.CachePath = "./data/hlsproxy.db"
		case "leveldb":
			config.CachePath = "./data/leveldb"
		}
	}
	if config.CacheMaxEntries <= 0 {
		config.CacheMaxEntries = 10000
	}
	if config.CacheWriteWorkers <= 0 {
		config.CacheWriteWorkers = 16
	}
	if config.UpstreamMaxRetries < 0 {
		config.UpstreamMaxRetries = 0
	}
	if config.UpstreamRateLimit < 0 {
		config.UpstreamRateLimit = 0
	}
	if config.UpstreamRetryWaitMin <= 0 {
		config.UpstreamRetryWaitMin = 200 * time.Millisecond
	}
	if config.UpstreamRetryWaitMax < config.UpstreamRetryWaitMin {
		config.UpstreamRetryWaitMax = config.UpstreamRetryWaitMin
	}
	if config.ShutdownGraceDuration <= 0 {
		config.ShutdownGraceDuration = 10 * time.Second
	}
}
