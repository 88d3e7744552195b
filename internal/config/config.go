// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	KiB int64 = 1024
	MiB       = 1024 * KiB
	GiB       = 1024 * MiB
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultJWTExpiresIn     = "24h"
	DefaultPGHost           = "127.0.0.1"
	DefaultPGPort           = 5432
	DefaultPGUser           = "postgres"
	DefaultPGDatabase       = "stowbot"
	DefaultPGSSLMode        = "disable"
	DefaultRedisAddr        = "127.0.0.1:6379"
	DefaultStorageBackend   = "s3"
	DefaultBucket           = "media"
	DefaultRegion           = "us-east-1"
	DefaultURLExpiry        = "1h"
	DefaultLocalRoot        = "data/files"
	DefaultPublicBaseURL    = "http://localhost:8080/files"
	DefaultStagingDir       = "data/temp"
	DefaultExtractorBinary  = "yt-dlp"
	DefaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultRatePerMinute    = 5
	DefaultRateWindow       = "60s"
	DefaultRateBackend      = "memory"
	DefaultMaxConcurrent    = 3
	DefaultQuotaSchedule    = "0 0 * * *"
	DefaultSessionTTL       = "10m"
	DefaultCatalogTTL       = "10m"
	DefaultTransferTimeout  = "30m"
	DefaultProbeTimeout     = "2m"
	DefaultRegularCeiling   = 2 * GiB
	DefaultPrivilegedCeil   = 5 * GiB
	DefaultDailyQuota       = 1 * GiB
	DefaultPrivilegedDaily  = 5 * GiB
	DefaultTelegramPollSecs = 30
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Admin     AdminConfig     `toml:"admin"`
	Telegram  TelegramConfig  `toml:"telegram"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	Storage   StorageConfig   `toml:"storage"`
	Staging   StagingConfig   `toml:"staging"`
	Extractor ExtractorConfig `toml:"extractor"`
	Limits    LimitsConfig    `toml:"limits"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the admin HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AdminConfig holds the admin console credentials and JWT settings.
// PasswordHash is a bcrypt hash (see `stowbot hash-password`).
type AdminConfig struct {
	Username     string `toml:"username"`
	PasswordHash string `toml:"password_hash"`
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// TelegramConfig holds the bot token and optional local Bot API server endpoint.
type TelegramConfig struct {
	BotToken    string `toml:"bot_token"`
	APIEndpoint string `toml:"api_endpoint"`
	AdminChatID int64  `toml:"admin_chat_id"`
	PollTimeout int    `toml:"poll_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// RedisConfig is only used when limits.rate_limit_backend is "redis".
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	Backend          string `toml:"backend"`
	Endpoint         string `toml:"endpoint"`
	ExternalEndpoint string `toml:"external_endpoint"`
	AccessKey        string `toml:"access_key"`
	SecretKey        string `toml:"secret_key"`
	UseSSL           bool   `toml:"use_ssl"`
	Bucket           string `toml:"bucket"`
	Region           string `toml:"region"`
	Prefix           string `toml:"prefix"`
	URLExpiry        string `toml:"url_expiry"`
	LocalRoot        string `toml:"local_root"`
	PublicBaseURL    string `toml:"public_base_url"`
}

// StagingConfig holds the temporary staging directory.
type StagingConfig struct {
	Dir string `toml:"dir"`
}

// ExtractorConfig holds the remote media extraction tool settings.
type ExtractorConfig struct {
	Binary    string   `toml:"binary"`
	UserAgent string   `toml:"user_agent"`
	ExtraArgs []string `toml:"extra_args"`
}

// LimitsConfig holds quota, rate and concurrency limits.
type LimitsConfig struct {
	RateLimitPerMinute          int    `toml:"rate_limit_per_minute"`
	RateLimitWindow             string `toml:"rate_limit_window"`
	RateLimitBackend            string `toml:"rate_limit_backend"`
	MaxConcurrentTransfers      int    `toml:"max_concurrent_transfers"`
	RegularQuotaCeilingBytes    int64  `toml:"regular_quota_ceiling_bytes"`
	PrivilegedQuotaCeilingBytes int64  `toml:"privileged_quota_ceiling_bytes"`
	DailyQuotaResetBytes        int64  `toml:"daily_quota_reset_bytes"`
	PrivilegedDailyQuotaBytes   int64  `toml:"privileged_daily_quota_bytes"`
	QuotaResetSchedule          string `toml:"quota_reset_schedule"`
	SessionTTL                  string `toml:"session_ttl"`
	CatalogTTL                  string `toml:"catalog_ttl"`
	TransferTimeout             string `toml:"transfer_timeout"`
	ProbeTimeout                string `toml:"probe_timeout"`
	MaxBytesPerSecond           int64  `toml:"max_bytes_per_second"`
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Username:     "admin",
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Telegram: TelegramConfig{
			PollTimeout: DefaultTelegramPollSecs,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Storage: StorageConfig{
			Backend:       DefaultStorageBackend,
			Bucket:        DefaultBucket,
			Region:        DefaultRegion,
			URLExpiry:     DefaultURLExpiry,
			LocalRoot:     DefaultLocalRoot,
			PublicBaseURL: DefaultPublicBaseURL,
		},
		Staging: StagingConfig{
			Dir: DefaultStagingDir,
		},
		Extractor: ExtractorConfig{
			Binary:    DefaultExtractorBinary,
			UserAgent: DefaultUserAgent,
		},
		Limits: LimitsConfig{
			RateLimitPerMinute:          DefaultRatePerMinute,
			RateLimitWindow:             DefaultRateWindow,
			RateLimitBackend:            DefaultRateBackend,
			MaxConcurrentTransfers:      DefaultMaxConcurrent,
			RegularQuotaCeilingBytes:    DefaultRegularCeiling,
			PrivilegedQuotaCeilingBytes: DefaultPrivilegedCeil,
			DailyQuotaResetBytes:        DefaultDailyQuota,
			PrivilegedDailyQuotaBytes:   DefaultPrivilegedDaily,
			QuotaResetSchedule:          DefaultQuotaSchedule,
			SessionTTL:                  DefaultSessionTTL,
			CatalogTTL:                  DefaultCatalogTTL,
			TransferTimeout:             DefaultTransferTimeout,
			ProbeTimeout:                DefaultProbeTimeout,
		},
	}
}

// Load reads and parses the TOML config file at path, applies default values for
// missing fields and then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	ApplyEnv(&cfg, os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides config values from environment variables.
// The variable names match the ones the bot has always been deployed with.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v, err := strconv.Atoi(strings.TrimSpace(getenv(key))); err == nil {
			*dst = v
		}
	}
	setInt64 := func(dst *int64, key string) {
		if v, err := strconv.ParseInt(strings.TrimSpace(getenv(key)), 10, 64); err == nil {
			*dst = v
		}
	}

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Server.Addr, "HTTP_ADDR")
	setString(&cfg.Admin.Username, "ADMIN_USERNAME")
	setString(&cfg.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	setString(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	setString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_API_TOKEN")
	setString(&cfg.Telegram.APIEndpoint, "TELEGRAM_API_ENDPOINT")
	setInt64(&cfg.Telegram.AdminChatID, "TELEGRAM_ADMIN_CHAT_ID")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Storage.Backend, "STORAGE_BACKEND")
	setString(&cfg.Storage.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Storage.ExternalEndpoint, "MINIO_EXTERNAL_ENDPOINT")
	setString(&cfg.Storage.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Storage.SecretKey, "MINIO_SECRET_KEY")
	if v := strings.TrimSpace(getenv("MINIO_USE_HTTPS")); v != "" {
		cfg.Storage.UseSSL = strings.EqualFold(v, "true")
	}
	setString(&cfg.Staging.Dir, "STAGING_DIR")
	setString(&cfg.Extractor.Binary, "YTDLP_BINARY")
	setInt(&cfg.Limits.RateLimitPerMinute, "BOT_MAX_REQUESTS_PER_MINUTE")
	setString(&cfg.Limits.RateLimitBackend, "RATE_LIMIT_BACKEND")
	setInt(&cfg.Limits.MaxConcurrentTransfers, "BOT_MAX_CONCURRENT_DOWNLOADS")
	setInt64(&cfg.Limits.RegularQuotaCeilingBytes, "REGULAR_QUOTA_CEILING_BYTES")
	setInt64(&cfg.Limits.PrivilegedQuotaCeilingBytes, "PRIVILEGED_QUOTA_CEILING_BYTES")
	setInt64(&cfg.Limits.DailyQuotaResetBytes, "DAILY_QUOTA_RESET_BYTES")
	setInt64(&cfg.Limits.PrivilegedDailyQuotaBytes, "PRIVILEGED_DAILY_QUOTA_BYTES")
}
