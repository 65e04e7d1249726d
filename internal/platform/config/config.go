// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, token codec) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

// MinJWTSecretLength is the minimum byte length accepted for the HS256 signing secret.
const MinJWTSecretLength = 32

// Supported notification transports.
const (
	NotifierLog   = "log"
	NotifierKafka = "kafka"
)

// # Configuration Schema

// Config holds all runtime configuration for the identity API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL      string        `env:"DATABASE_URL,required"`
	DatabaseMaxConns int32         `env:"DATABASE_MAX_CONNS"         envDefault:"25"`
	DatabaseMinConns int32         `env:"DATABASE_MIN_CONNS"         envDefault:"5"`
	StatementTimeout time.Duration `env:"DATABASE_STATEMENT_TIMEOUT" envDefault:"30s"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis), used for auth throttling buckets.
	RedisURL          string `env:"REDIS_URL,required"`
	RedisPoolSize     int    `env:"REDIS_POOL_SIZE"      envDefault:"10"`
	RedisMinIdleConns int    `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`

	// Token signing
	JWTSecret string `env:"JWT_SECRET,required"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"yomira-identity"`

	// Token lifetimes
	AccessTokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL"       envDefault:"1h"`
	RefreshTokenTTL      time.Duration `env:"REFRESH_TOKEN_TTL"      envDefault:"168h"`
	RefreshTokenRotation bool          `env:"REFRESH_TOKEN_ROTATION" envDefault:"false"`
	ResetTokenTTL        time.Duration `env:"RESET_TOKEN_TTL"        envDefault:"1h"`

	// VerificationTokenTTL of zero disables verification token expiry.
	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`

	// Credential hashing work factor
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	// FrontendURL is the base for links embedded in notifications.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	// Notification transport
	Notifier         string   `env:"NOTIFIER"           envDefault:"log"`
	KafkaBrokers     []string `env:"KAFKA_BROKERS"      envSeparator:","`
	KafkaTopicPrefix string   `env:"KAFKA_TOPIC_PREFIX" envDefault:"identity"`

	// Auth endpoint throttling (fixed window per client IP and route)
	ThrottleLimit  int           `env:"THROTTLE_LIMIT"  envDefault:"10"`
	ThrottleWindow time.Duration `env:"THROTTLE_WINDOW" envDefault:"60s"`

	// CleanupInterval of zero disables the background sweeper.
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"15m"`

	// Cross-Origin Resource Sharing
	ExtraOrigins []string `env:"EXTRA_ORIGINS" envSeparator:","`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var problems []error

	if len(c.JWTSecret) < MinJWTSecretLength {
		problems = append(problems, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength))
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		problems = append(problems, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		problems = append(problems, errors.New("token lifetimes must be positive"))
	}

	if c.VerificationTokenTTL < 0 || c.CleanupInterval < 0 {
		problems = append(problems, errors.New("VERIFICATION_TOKEN_TTL and CLEANUP_INTERVAL must not be negative"))
	}

	switch c.Notifier {
	case NotifierLog:
	case NotifierKafka:
		if len(c.KafkaBrokers) == 0 {
			problems = append(problems, errors.New("KAFKA_BROKERS is required when NOTIFIER=kafka"))
		}
	default:
		problems = append(problems, fmt.Errorf("NOTIFIER must be %q or %q", NotifierLog, NotifierKafka))
	}

	if c.DatabaseMaxConns < 1 || c.DatabaseMinConns < 0 || c.DatabaseMinConns > c.DatabaseMaxConns {
		problems = append(problems, errors.New("DATABASE_MIN_CONNS must be between 0 and DATABASE_MAX_CONNS"))
	}

	if c.RedisPoolSize < 1 || c.RedisMinIdleConns < 0 || c.RedisMinIdleConns > c.RedisPoolSize {
		problems = append(problems, errors.New("REDIS_MIN_IDLE_CONNS must be between 0 and REDIS_POOL_SIZE"))
	}

	if c.ThrottleLimit < 1 || c.ThrottleWindow < time.Second {
		problems = append(problems, errors.New("THROTTLE_LIMIT must be positive and THROTTLE_WINDOW at least 1s"))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(problems...))
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
