package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/frame"
)

// Config holds environment-driven settings for the dashboard API.
type Config struct {
	Port                 int
	DatasetRoots         []string
	FlowpathsPath        string
	FlowpathsDatabaseURL string
	FlowpathsLayer       string
	MergeJoin            frame.JoinMode
	SimplifyTolerance    float64
	FitPadding           float64
	CacheTTL             time.Duration
	CacheMaxEntries      int
	SessionTTL           time.Duration
	BearerToken          string
	LogLevel             string
	LogFormat            string
	ShutdownTimeout      time.Duration
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:              8080,
		FlowpathsLayer:    "flowpaths",
		MergeJoin:         frame.JoinInner,
		SimplifyTolerance: 0.001,
		FitPadding:        0.01,
		CacheTTL:          30 * time.Minute,
		CacheMaxEntries:   256,
		SessionTTL:        12 * time.Hour,
		LogLevel:          "info",
		LogFormat:         "json",
		ShutdownTimeout:   10 * time.Second,
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	}

	cfg.DatasetRoots = splitList(os.Getenv("DATASET_ROOTS"))
	cfg.FlowpathsPath = strings.TrimSpace(os.Getenv("FLOWPATHS_PATH"))
	cfg.FlowpathsDatabaseURL = os.Getenv("FLOWPATHS_DATABASE_URL")
	if layer := strings.TrimSpace(os.Getenv("FLOWPATHS_LAYER")); layer != "" {
		cfg.FlowpathsLayer = layer
	}

	if joinStr := os.Getenv("MERGE_JOIN"); joinStr != "" {
		mode, err := frame.ParseJoinMode(joinStr)
		if err != nil {
			return cfg, fmt.Errorf("invalid MERGE_JOIN: %w", err)
		}
		cfg.MergeJoin = mode
	}

	var err error
	if cfg.SimplifyTolerance, err = envFloat("SIMPLIFY_TOLERANCE", cfg.SimplifyTolerance); err != nil {
		return cfg, err
	}
	if cfg.FitPadding, err = envFloat("FIT_PADDING", cfg.FitPadding); err != nil {
		return cfg, err
	}
	if cfg.CacheTTL, err = envDuration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = envDuration("SESSION_TTL", cfg.SessionTTL); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return cfg, err
	}

	if maxStr := os.Getenv("CACHE_MAX_ENTRIES"); maxStr != "" {
		if n, err := strconv.Atoi(maxStr); err == nil && n > 0 {
			cfg.CacheMaxEntries = n
		} else {
			return cfg, fmt.Errorf("invalid CACHE_MAX_ENTRIES: %s", maxStr)
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		if format != "json" && format != "text" {
			return cfg, fmt.Errorf("invalid LOG_FORMAT: %s", format)
		}
		cfg.LogFormat = format
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return def, fmt.Errorf("invalid %s: %s", key, raw)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def, fmt.Errorf("invalid %s: %s", key, raw)
	}
	return d, nil
}
