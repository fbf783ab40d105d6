package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POSITIOND_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POSITIOND_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Postgres.DSN, "POSITIOND_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POSITIOND_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSITIOND_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POSITIOND_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POSITIOND_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POSITIOND_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POSITIOND_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POSITIOND_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POSITIOND_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POSITIOND_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "POSITIOND_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POSITIOND_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POSITIOND_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POSITIOND_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POSITIOND_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POSITIOND_REDIS_TLS_ENABLED")

	setInt(&cfg.Engine.LockTTLSeconds, "POSITIOND_ENGINE_LOCK_TTL_SECONDS")
	setInt(&cfg.Engine.MaxConcurrentEvaluations, "POSITIOND_ENGINE_MAX_CONCURRENT_EVALUATIONS")
	setInt(&cfg.Engine.TickIntervalSeconds, "POSITIOND_ENGINE_TICK_INTERVAL_SECONDS")
	setStr(&cfg.Engine.BaseTokenAddress, "POSITIOND_ENGINE_BASE_TOKEN_ADDRESS")
	setStr(&cfg.Engine.BaseTokenSymbol, "POSITIOND_ENGINE_BASE_TOKEN_SYMBOL")

	setStr(&cfg.Notify.TelegramToken, "POSITIOND_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POSITIOND_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhook, "POSITIOND_NOTIFY_DISCORD_WEBHOOK")

	setStr(&cfg.LogLevel, "POSITIOND_LOG_LEVEL")
}

func setStr(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
