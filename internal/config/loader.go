package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path (skipped when path is
// empty), merges it on top of the built-in defaults, applies WAGER_*
// environment variable overrides, and returns the final Config. The result
// has NOT been validated; callers should invoke Config.Validate after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WAGER_* environment variables and
// overwrites the corresponding Config fields when set. This lets operators
// inject connection strings at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Server.Port, "WAGER_PORT", "PORT")
	setStr(&cfg.Database.URL, "WAGER_DATABASE_URL", "DATABASE_URL")
	setStr(&cfg.Redis.URL, "WAGER_REDIS_URL", "REDIS_URL")
	setStr(&cfg.Engine.StartingBalance, "WAGER_STARTING_BALANCE")
	setStr(&cfg.Engine.DefaultFeeRate, "WAGER_DEFAULT_FEE_RATE")
	setStr(&cfg.LogLevel, "WAGER_LOG_LEVEL")
}

// setStr assigns the first non-empty environment variable to dst.
func setStr(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
			return
		}
	}
}
