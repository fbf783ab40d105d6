// Package config defines the top-level configuration for the position
// manager and provides loading and validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POSITIOND_* environment
// variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Engine   EngineConfig   `toml:"engine"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// EngineConfig holds evaluation loop parameters.
type EngineConfig struct {
	// LockTTLSeconds bounds how long a crashed evaluation can hold a
	// position lock.
	LockTTLSeconds int `toml:"lock_ttl_seconds"`
	// MaxConcurrentEvaluations bounds how many positions one tick fans out to.
	MaxConcurrentEvaluations int `toml:"max_concurrent_evaluations"`
	// TickIntervalSeconds is how often the run loop polls prices for tokens
	// with open positions.
	TickIntervalSeconds int `toml:"tick_interval_seconds"`
	// BaseTokenAddress / BaseTokenSymbol identify the base currency positions
	// are bought and sold against.
	BaseTokenAddress string `toml:"base_token_address"`
	BaseTokenSymbol  string `toml:"base_token_symbol"`
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	DiscordWebhook string   `toml:"discord_webhook"`
	Events         []string `toml:"events"`
}

// LockTTL returns the configured lock TTL as a duration.
func (c EngineConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// TickInterval returns the configured run-loop interval as a duration.
func (c EngineConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Engine: EngineConfig{
			LockTTLSeconds:           30,
			MaxConcurrentEvaluations: 16,
			TickIntervalSeconds:      5,
			BaseTokenAddress:         "So11111111111111111111111111111111111111112",
			BaseTokenSymbol:          "SOL",
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	var problems []string

	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
		problems = append(problems, "postgres: either dsn or host/database/user must be set")
	}
	if c.Redis.Addr == "" {
		problems = append(problems, "redis: addr must be set")
	}
	if c.Engine.LockTTLSeconds <= 0 {
		problems = append(problems, "engine: lock_ttl_seconds must be positive")
	}
	if c.Engine.MaxConcurrentEvaluations <= 0 {
		problems = append(problems, "engine: max_concurrent_evaluations must be positive")
	}
	if c.Engine.TickIntervalSeconds <= 0 {
		problems = append(problems, "engine: tick_interval_seconds must be positive")
	}
	if c.Engine.BaseTokenAddress == "" {
		problems = append(problems, "engine: base_token_address must be set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
