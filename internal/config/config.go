// Package config reads process settings from the environment, after
// loading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	minJWTSecretLength = 32
	minBcryptCost      = 4
	maxBcryptCost      = 14
)

// Config holds every runtime setting.
type Config struct {
	Port         string
	DatabasePath string
	JWTSecret    string
	CookieSecure bool
	BcryptCost   int
	ImagesDir    string
	EditPolicy   string // CEL expression; empty means the built-in default
	AdminEmails  []string
	LogLevel     string
}

// Load reads .env files (missing files are ignored; real environment
// variables win) and then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:         env("PORT", "8080"),
		DatabasePath: env("DATABASE_PATH", "people.db"),
		JWTSecret:    getenv("JWT_SECRET"),
		// Secure cookies unless explicitly disabled for local development.
		CookieSecure: getenv("COOKIE_SECURE") != "false",
		BcryptCost:   12,
		ImagesDir:    env("IMAGES_DIR", "wwwroot/images"),
		EditPolicy:   getenv("EDIT_POLICY"),
		AdminEmails:  splitList(getenv("ADMIN_EMAILS")),
		LogLevel:     env("LOG_LEVEL", "info"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d characters for HMAC-SHA256 security", minJWTSecretLength)
	}

	if v := getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
		}
		if cost < minBcryptCost || cost > maxBcryptCost {
			return nil, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", minBcryptCost, maxBcryptCost, cost)
		}
		cfg.BcryptCost = cost
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
