// Package boot turns the loaded configuration into typed runtime settings.
package boot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/memohai/stowbot/internal/config"
)

// RuntimeConfig holds parsed durations and validated limits derived from config.Config.
type RuntimeConfig struct {
	JwtSecret    string
	JwtExpiresIn time.Duration
	ServerAddr   string

	RateLimit       int
	RateWindow      time.Duration
	MaxConcurrent   int
	SessionTTL      time.Duration
	CatalogTTL      time.Duration
	TransferTimeout time.Duration
	ProbeTimeout    time.Duration
	URLExpiry       time.Duration

	RegularCeiling     int64
	PrivilegedCeiling  int64
	DailyQuota         int64
	PrivilegedDaily    int64
	MaxBytesPerSecond  int64
	QuotaResetSchedule string
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	if strings.TrimSpace(cfg.Admin.JWTSecret) == "" {
		return nil, errors.New("admin jwt secret is required")
	}

	ret := &RuntimeConfig{
		JwtSecret:          cfg.Admin.JWTSecret,
		ServerAddr:         cfg.Server.Addr,
		RateLimit:          cfg.Limits.RateLimitPerMinute,
		MaxConcurrent:      cfg.Limits.MaxConcurrentTransfers,
		RegularCeiling:     cfg.Limits.RegularQuotaCeilingBytes,
		PrivilegedCeiling:  cfg.Limits.PrivilegedQuotaCeilingBytes,
		DailyQuota:         cfg.Limits.DailyQuotaResetBytes,
		PrivilegedDaily:    cfg.Limits.PrivilegedDailyQuotaBytes,
		MaxBytesPerSecond:  cfg.Limits.MaxBytesPerSecond,
		QuotaResetSchedule: cfg.Limits.QuotaResetSchedule,
	}

	var err error
	if ret.JwtExpiresIn, err = parsePositive("admin.jwt_expires_in", cfg.Admin.JWTExpiresIn); err != nil {
		return nil, err
	}
	if ret.RateWindow, err = parsePositive("limits.rate_limit_window", cfg.Limits.RateLimitWindow); err != nil {
		return nil, err
	}
	if ret.SessionTTL, err = parsePositive("limits.session_ttl", cfg.Limits.SessionTTL); err != nil {
		return nil, err
	}
	if ret.CatalogTTL, err = parsePositive("limits.catalog_ttl", cfg.Limits.CatalogTTL); err != nil {
		return nil, err
	}
	if ret.TransferTimeout, err = parsePositive("limits.transfer_timeout", cfg.Limits.TransferTimeout); err != nil {
		return nil, err
	}
	if ret.ProbeTimeout, err = parsePositive("limits.probe_timeout", cfg.Limits.ProbeTimeout); err != nil {
		return nil, err
	}
	if ret.URLExpiry, err = parsePositive("storage.url_expiry", cfg.Storage.URLExpiry); err != nil {
		return nil, err
	}

	if ret.RateLimit <= 0 {
		return nil, errors.New("limits.rate_limit_per_minute must be positive")
	}
	if ret.MaxConcurrent <= 0 {
		return nil, errors.New("limits.max_concurrent_transfers must be positive")
	}
	if ret.RegularCeiling <= 0 || ret.PrivilegedCeiling <= 0 {
		return nil, errors.New("quota ceilings must be positive")
	}
	if ret.DailyQuota < 0 || ret.PrivilegedDaily < 0 {
		return nil, errors.New("daily quotas must not be negative")
	}
	if ret.MaxBytesPerSecond < 0 {
		return nil, errors.New("limits.max_bytes_per_second must not be negative")
	}
	return ret, nil
}

func parsePositive(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}
