// Package config loads EcoRide settings from the environment, optional
// .env files and an optional config.yaml.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`
	Debug           bool          `mapstructure:"DEBUG"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseURL    string `mapstructure:"DATABASE_URL" validate:"required,url"`
	MigrateOnStart bool   `mapstructure:"MIGRATE_ON_START"`

	// RedisAddr is optional; sessions stay in process memory without it.
	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB" validate:"gte=0,lte=15"`

	SessionCookieName string        `mapstructure:"SESSION_COOKIE_NAME" validate:"required"`
	SessionTTL        time.Duration `mapstructure:"SESSION_TTL" validate:"required"`
	CookieSecure      bool          `mapstructure:"COOKIE_SECURE"`

	CORSOrigin    string  `mapstructure:"CORS_ORIGIN" validate:"required"`
	AuthRateLimit float64 `mapstructure:"AUTH_RATE_LIMIT" validate:"gt=0"`
	AuthRateBurst int     `mapstructure:"AUTH_RATE_BURST" validate:"gte=1"`
	// TrustProxy honours X-Forwarded-For and X-Real-IP. Enable only behind a
	// reverse proxy that overwrites them.
	TrustProxy bool `mapstructure:"TRUST_PROXY"`

	StaticDir string `mapstructure:"STATIC_DIR"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var keys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"DEBUG",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DATABASE_URL",
	"MIGRATE_ON_START",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"REDIS_DB",
	"SESSION_COOKIE_NAME",
	"SESSION_TTL",
	"COOKIE_SECURE",
	"CORS_ORIGIN",
	"AUTH_RATE_LIMIT",
	"AUTH_RATE_BURST",
	"TRUST_PROXY",
	"STATIC_DIR",
}

// Load reads .env files if present, applies defaults, binds env vars and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("MIGRATE_ON_START", true)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_COOKIE_NAME", "ECORIDE_SESSID")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("AUTH_RATE_LIMIT", 5)
	v.SetDefault("AUTH_RATE_BURST", 10)
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("STATIC_DIR", "./public")

	_ = v.ReadInConfig()

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	if c.DatabaseURL == "" {
		c.DatabaseURL = databaseURLFromParts()
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "test"
}

// databaseURLFromParts builds a postgres URL from the discrete DB_* variables,
// falling back to local-development defaults.
func databaseURLFromParts() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(getEnv("DB_USER", "postgres"), getEnv("DB_PASSWORD", "postgres")),
		Host:   getEnv("DB_HOST", "localhost") + ":" + getEnv("DB_PORT", "5432"),
		Path:   "/" + getEnv("DB_NAME", "ecoride"),
	}
	q := url.Values{}
	q.Set("sslmode", getEnv("DB_SSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
