// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir                string // Base directory for allocators.db (always absolute)
	Port                   int
	LogLevel               string
	LogPretty              bool
	DevMode                bool
	EnforceMinObservations bool // Reject predictions shorter than min_observations
	Host                   *HostConfig
}

// HostConfig holds strategy host settings
type HostConfig struct {
	ScriptsDir string // Lua strategy scripts loaded into the embedded runtime; empty disables it
	Addr       string // Remote strategy host to dial; empty disables remote strategies
	Listen     string // Address cmd/strategy-host listens on
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ALLOCATOR_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                absDataDir,
		Port:                   getEnvAsInt("ALLOCATOR_PORT", 8010),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogPretty:              getEnvAsBool("LOG_PRETTY", false),
		DevMode:                getEnvAsBool("DEV_MODE", false),
		EnforceMinObservations: getEnvAsBool("ALLOCATOR_ENFORCE_MIN_OBSERVATIONS", false),
		Host: &HostConfig{
			ScriptsDir: getEnv("ALLOCATOR_SCRIPTS_DIR", "scripts/strategies"),
			Addr:       getEnv("ALLOCATOR_HOST_ADDR", ""),
			Listen:     getEnv("ALLOCATOR_HOST_LISTEN", "127.0.0.1:5610"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the path of allocators.db
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "allocators.db")
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}
	if c.Host == nil {
		return fmt.Errorf("host configuration is missing")
	}
	if c.Host.Listen == "" {
		return fmt.Errorf("strategy host listen address is empty")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
