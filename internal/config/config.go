// Package config loads service configuration from the environment, with
// optional .env support for local development. Configuration is immutable
// after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	Addr        string
	PostgresDSN string

	JWT       JWTConfig
	Bootstrap BootstrapConfig
	Sweep     SweepConfig
}

// JWTConfig holds token signing configuration.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// BootstrapConfig holds the seeded SuperAdmin account.
type BootstrapConfig struct {
	SuperAdminEmail    string
	SuperAdminPassword string
	SuperAdminName     string
}

// SweepConfig controls the refresh token housekeeping job.
type SweepConfig struct {
	Schedule   string
	PurgeGrace time.Duration
}

// Load reads configuration from the environment. A .env file is honored
// when present; missing files are not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	signingKey := strings.TrimSpace(os.Getenv("BACKOFFICE_JWT_KEY"))
	if signingKey == "" {
		return nil, fmt.Errorf("BACKOFFICE_JWT_KEY is required")
	}

	accessTTL, err := durationEnv("BACKOFFICE_ACCESS_TTL_MINUTES", 60, time.Minute)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := durationEnv("BACKOFFICE_REFRESH_TTL_DAYS", 30, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	purgeGrace, err := durationEnv("BACKOFFICE_PURGE_GRACE_HOURS", 24, time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		Addr:        getEnv("BACKOFFICE_ADDR", ":8080"),
		PostgresDSN: os.Getenv("BACKOFFICE_PG_DSN"),
		JWT: JWTConfig{
			SigningKey: signingKey,
			Issuer:     getEnv("BACKOFFICE_JWT_ISSUER", "backoffice"),
			Audience:   getEnv("BACKOFFICE_JWT_AUDIENCE", "backoffice"),
			AccessTTL:  accessTTL,
			RefreshTTL: refreshTTL,
		},
		Bootstrap: BootstrapConfig{
			SuperAdminEmail:    os.Getenv("BACKOFFICE_SUPERADMIN_EMAIL"),
			SuperAdminPassword: os.Getenv("BACKOFFICE_SUPERADMIN_PASSWORD"),
			SuperAdminName:     getEnv("BACKOFFICE_SUPERADMIN_NAME", "Super Admin"),
		},
		Sweep: SweepConfig{
			Schedule:   getEnv("BACKOFFICE_SWEEP_SCHEDULE", "30 3 * * *"),
			PurgeGrace: purgeGrace,
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback int, unit time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return time.Duration(fallback) * unit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return time.Duration(n) * unit, nil
}
