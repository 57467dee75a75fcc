package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minPagesPollMS = 100

// Config holds all configuration for the inspector proxy.
type Config struct {
	// Listener settings
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Relay behavior
	ProjectRoot      string
	PagesPollMS      int
	NetworkCacheSize int

	// Traffic trace; disabled when TraceDir is empty
	TraceDir           string
	TraceMaxFrameBytes int
	TraceMaxFileSizeMB int
	TraceBufferSize    int

	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	root, err := os.Getwd()
	if err != nil {
		root = "."
	}

	cfg := &Config{
		BindAddr:           getEnvOrDefault("INSPECTOR_BIND_ADDR", "127.0.0.1:8081"),
		PortCandidates:     getEnvListOrDefault("INSPECTOR_PORT_CANDIDATES", []string{"127.0.0.1:8082", "127.0.0.1:8083", "127.0.0.1:8084"}),
		PortAutoFallback:   getEnvBoolOrDefault("INSPECTOR_PORT_AUTO_FALLBACK", true),
		ProjectRoot:        getEnvOrDefault("INSPECTOR_PROJECT_ROOT", root),
		PagesPollMS:        getEnvIntOrDefault("INSPECTOR_PAGES_POLL_MS", 1000),
		NetworkCacheSize:   getEnvIntOrDefault("INSPECTOR_NETWORK_CACHE_SIZE", 1024),
		TraceDir:           getEnvOrDefault("INSPECTOR_TRACE_DIR", ""),
		TraceMaxFrameBytes: getEnvIntOrDefault("INSPECTOR_TRACE_MAX_FRAME_BYTES", 1024*1024),
		TraceMaxFileSizeMB: getEnvIntOrDefault("INSPECTOR_TRACE_MAX_FILE_SIZE_MB", 100),
		TraceBufferSize:    getEnvIntOrDefault("INSPECTOR_TRACE_BUFFER_SIZE", 5000),
		LogLevel:           strings.ToLower(getEnvOrDefault("INSPECTOR_LOG_LEVEL", "info")),
		LogFile:            getEnvOrDefault("INSPECTOR_LOG_FILE", "logs/inspector_proxy.log"),
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize clamps values that would make the relay misbehave.
func (c *Config) Normalize() {
	if c.PagesPollMS < minPagesPollMS {
		c.PagesPollMS = minPagesPollMS
	}
	if c.NetworkCacheSize <= 0 {
		c.NetworkCacheSize = 1024
	}
	if c.TraceBufferSize <= 0 {
		c.TraceBufferSize = 5000
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
}

// PagesPollInterval is the page list refresh period.
func (c *Config) PagesPollInterval() time.Duration {
	return time.Duration(c.PagesPollMS) * time.Millisecond
}

// TraceEnabled reports whether relayed frames should be written to disk.
func (c *Config) TraceEnabled() bool {
	return c.TraceDir != ""
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvListOrDefault splits a comma separated value, dropping blanks.
func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return SplitList(val)
}

// SplitList splits a comma separated list, trimming entries and dropping blanks.
func SplitList(val string) []string {
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
