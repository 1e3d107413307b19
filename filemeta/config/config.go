// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/flaneur2020/filemeta/filemeta/logger"
)

const (
	envLogLevel  = "FILEMETA_LOG_LEVEL"
	envWorkers   = "FILEMETA_WORKERS"
	envOutput    = "FILEMETA_OUTPUT"
	envCacheSize = "FILEMETA_CACHE_SIZE"
	envMaxHeader = "FILEMETA_MAX_HEADER"

	// DefaultMaxHeader bounds text header scans (PS comments, XPM values).
	DefaultMaxHeader = 1 << 20
	// DefaultCacheSize is the number of extraction results kept per process.
	DefaultCacheSize = 256
)

// Config holds settings shared by the CLI and the extraction service.
type Config struct {
	LogLevel  logger.LogLevel
	Workers   int
	Output    string
	CacheSize int
	MaxHeader int64
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:  logger.LogLevelError,
		Workers:   runtime.NumCPU(),
		Output:    "text",
		CacheSize: DefaultCacheSize,
		MaxHeader: DefaultMaxHeader,
	}
}

// Load reads envFile (".env" when empty) if present, then overlays FILEMETA_* variables
// on the defaults. Variables already set in the process environment win over the file.
func Load(envFile string) (*Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if v := getenv(envLogLevel); v != "" {
		level, err := logger.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envLogLevel, err)
		}
		cfg.LogLevel = level
	}

	if v := getenv(envWorkers); v != "" {
		n, err := positiveInt(envWorkers, v)
		if err != nil {
			return nil, err
		}
		cfg.Workers = n
	}

	if v := getenv(envOutput); v != "" {
		out := strings.ToLower(strings.TrimSpace(v))
		if err := ValidateOutput(out); err != nil {
			return nil, fmt.Errorf("%s: %w", envOutput, err)
		}
		cfg.Output = out
	}

	// 0 disables the result cache
	if v := getenv(envCacheSize); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%s: invalid number %q", envCacheSize, v)
		}
		if n < 0 {
			return nil, fmt.Errorf("%s: must not be negative, got %d", envCacheSize, n)
		}
		cfg.CacheSize = n
	}

	if v := getenv(envMaxHeader); v != "" {
		n, err := positiveInt(envMaxHeader, v)
		if err != nil {
			return nil, err
		}
		cfg.MaxHeader = int64(n)
	}

	return cfg, nil
}

// ValidateOutput checks an output format name.
func ValidateOutput(out string) error {
	switch out {
	case "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", out)
}

func positiveInt(key, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", key, n)
	}
	return n, nil
}
