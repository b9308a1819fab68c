package config

import (
	"fmt"
	"strings"
	"time"

	"rewards-ledger/internal/core/domain"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Redis     RedisConfig               `mapstructure:"redis"`
	JWT       JWTConfig                 `mapstructure:"jwt"`
	Log       LogConfig                 `mapstructure:"log"`
	Rewards   domain.RewardsPolicy      `mapstructure:"rewards"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Notify    NotifyConfig              `mapstructure:"notify"`
	Worker    WorkerConfig              `mapstructure:"worker"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// ProviderConfig holds the webhook verification settings for one
// payout provider. SignatureHeader defaults to X-<Provider>-Signature.
type ProviderConfig struct {
	Secret          string `mapstructure:"secret"`
	SignatureHeader string `mapstructure:"signature_header"`
}

// NotifyConfig configures the ops notification channel. An empty
// token disables the Telegram notifier (log fallback is used).
type NotifyConfig struct {
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id"`
}

// WorkerConfig configures the background sweeper schedules.
type WorkerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	UnlockSpec      string `mapstructure:"unlock_spec"`       // cron spec for coin unlock sweep
	AutoApproveSpec string `mapstructure:"auto_approve_spec"` // cron spec for withdrawal auto-processing
	SweepBatchSize  int    `mapstructure:"sweep_batch_size"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: RWL.
// Nested keys use underscore: RWL_DATABASE_HOST, RWL_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "rewards_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "rewards-ledger")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Rewards policy: 100 coins = 1 rupee (100 paise), 24h coin lock,
	// two commission levels at 10%/5% of the base, min withdrawal of
	// 100 rupees, auto-approve below 500 rupees.
	v.SetDefault("rewards.version", "default")
	v.SetDefault("rewards.rate.coins", 100)
	v.SetDefault("rewards.rate.amount", 100)
	v.SetDefault("rewards.min_convert_coins", 100)
	v.SetDefault("rewards.coin_lock_duration", "24h")
	v.SetDefault("rewards.commission_base", 10000)
	v.SetDefault("rewards.commission_levels", []map[string]any{
		{"level": 1, "percent": 10},
		{"level": 2, "percent": 5},
		{"level": 3, "percent": 2},
	})
	v.SetDefault("rewards.min_withdrawal", 10000)
	v.SetDefault("rewards.auto_approve_threshold", 50000)

	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", 0)

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.unlock_spec", "@every 5m")
	v.SetDefault("worker.auto_approve_spec", "@every 1m")
	v.SetDefault("worker.sweep_batch_size", 200)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: RWL_DATABASE_HOST -> database.host
	v.SetEnvPrefix("RWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Fill per-provider signature header defaults.
	for name, p := range cfg.Providers {
		if p.SignatureHeader == "" {
			p.SignatureHeader = defaultSignatureHeader(name)
			cfg.Providers[name] = p
		}
	}

	return &cfg, nil
}

// defaultSignatureHeader derives the X-<Provider>-Signature header name.
func defaultSignatureHeader(name string) string {
	if name == "" {
		return "X-Signature"
	}
	return "X-" + strings.ToUpper(name[:1]) + name[1:] + "-Signature"
}
