package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	LogDir       string
	JWTSecret    string
	GeoTablePath string
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:  getEnv("SMC_ENV", "development"),
		HTTPPort:     getEnv("SMC_HTTP_PORT", "8080"),
		DatabasePath: getEnv("SMC_DB_PATH", filepath.Join("data", "console.db")),
		LogDir:       getEnv("SMC_LOG_DIR", filepath.Join("data", "logs")),
		JWTSecret:    getEnv("SMC_JWT_SECRET", ""),
		GeoTablePath: getEnv("SMC_GEO_TABLE", ""),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production hardening.
func (c Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}
