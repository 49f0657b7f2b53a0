// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	DBPath         string
	AllowedOrigins []string

	Restriction RestrictionConfig
	Push        PushConfig
}

// RestrictionConfig locates the platform restriction feed.
type RestrictionConfig struct {
	Addr           string
	Password       string
	DB             int
	Channel        string
	StateKey       string
	ConnectTimeout time.Duration
}

// PushConfig holds Web Push delivery settings. An empty key pair disables
// push delivery; keys are generated at startup in that case.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/reminderd.db"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		Restriction: RestrictionConfig{
			Addr:           getEnv("RESTRICTION_REDIS_ADDR", "localhost:6379"),
			Password:       getEnv("RESTRICTION_REDIS_PASSWORD", ""),
			DB:             getEnvInt("RESTRICTION_REDIS_DB", 0),
			Channel:        getEnv("RESTRICTION_CHANNEL", "car:ux_restrictions"),
			StateKey:       getEnv("RESTRICTION_STATE_KEY", "car:ux_restrictions:active"),
			ConnectTimeout: getEnvDuration("RESTRICTION_CONNECT_TIMEOUT", 2*time.Second),
		},
		Push: PushConfig{
			VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
			Subscriber:      getEnv("PUSH_SUBSCRIBER", "mailto:ops@safedrive.example"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Restriction.Addr == "" {
		return fmt.Errorf("RESTRICTION_REDIS_ADDR cannot be empty")
	}
	if c.Restriction.Channel == "" {
		return fmt.Errorf("RESTRICTION_CHANNEL cannot be empty")
	}
	if c.Restriction.StateKey == "" {
		return fmt.Errorf("RESTRICTION_STATE_KEY cannot be empty")
	}
	if c.Restriction.ConnectTimeout <= 0 {
		return fmt.Errorf("RESTRICTION_CONNECT_TIMEOUT must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
