package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the reservation service.
type Config struct {
	Port     int
	LogLevel string

	// SweepInterval is how often expired holds are swept.
	SweepInterval time.Duration
	// HoldDuration is how long a new reservation holds stock.
	HoldDuration time.Duration
	// CatalogTimeout bounds each call into the product catalog.
	CatalogTimeout time.Duration
	// CatalogFile, when set, replaces the built-in product seed.
	CatalogFile string

	WebhookTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", port)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	cfg := &Config{
		Port:        port,
		LogLevel:    logLevel,
		CatalogFile: getStr("CATALOG_FILE", ""),
	}

	durations := []struct {
		key        string
		defaultVal time.Duration
		dst        *time.Duration
	}{
		{"SWEEP_INTERVAL", 60 * time.Second, &cfg.SweepInterval},
		{"HOLD_DURATION", 15 * time.Minute, &cfg.HoldDuration},
		{"CATALOG_TIMEOUT", 2 * time.Second, &cfg.CatalogTimeout},
		{"WEBHOOK_TIMEOUT", 5 * time.Second, &cfg.WebhookTimeout},
		{"READ_TIMEOUT", 5 * time.Second, &cfg.ReadTimeout},
		{"WRITE_TIMEOUT", 10 * time.Second, &cfg.WriteTimeout},
		{"IDLE_TIMEOUT", 60 * time.Second, &cfg.IdleTimeout},
		{"SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.defaultVal)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("invalid %s: %s, must be positive", d.key, v)
		}
		*d.dst = v
	}

	return cfg, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
