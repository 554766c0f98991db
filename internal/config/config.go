// Package config defines the wager engine server configuration and its
// TOML/env loading rules.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by WAGER_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Engine   EngineConfig   `toml:"engine"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP listener parameters.
type ServerConfig struct {
	Port            string        `toml:"port"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters. An empty URL means
// the server runs on the in-memory store.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// RedisConfig holds the optional read-through cache parameters. An empty
// URL disables caching.
type RedisConfig struct {
	URL string        `toml:"url"`
	TTL time.Duration `toml:"ttl"`
}

// EngineConfig holds the bookkeeping defaults. Monetary values are decimal
// strings, never floats.
type EngineConfig struct {
	StartingBalance string `toml:"starting_balance"`
	DefaultFeeRate  string `toml:"default_fee_rate"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			TTL: 30 * time.Second,
		},
		Engine: EngineConfig{
			StartingBalance: "1000",
			DefaultFeeRate:  "0.05",
		},
		LogLevel: "info",
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: server port is required")
	}
	balance, err := decimal.NewFromString(c.Engine.StartingBalance)
	if err != nil {
		return fmt.Errorf("config: invalid starting_balance %q: %w", c.Engine.StartingBalance, err)
	}
	if balance.IsNegative() {
		return fmt.Errorf("config: starting_balance must be non-negative")
	}
	fee, err := decimal.NewFromString(c.Engine.DefaultFeeRate)
	if err != nil {
		return fmt.Errorf("config: invalid default_fee_rate %q: %w", c.Engine.DefaultFeeRate, err)
	}
	if fee.IsNegative() || fee.GreaterThan(decimal.NewFromFloat(0.5)) {
		return fmt.Errorf("config: default_fee_rate must be in [0, 0.5]")
	}
	return nil
}

// StartingBalance returns the parsed starting balance. Call Validate first.
func (c *EngineConfig) StartingBalanceDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(c.StartingBalance)
	return d
}

// DefaultFeeRateDecimal returns the parsed default fee rate. Call Validate
// first.
func (c *EngineConfig) DefaultFeeRateDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(c.DefaultFeeRate)
	return d
}
