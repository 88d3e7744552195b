package modules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/memohai/stowbot/internal/boot"
	"github.com/memohai/stowbot/internal/config"
	"github.com/memohai/stowbot/internal/db"
	dbsqlc "github.com/memohai/stowbot/internal/db/sqlc"
	"github.com/memohai/stowbot/internal/logger"
	"github.com/memohai/stowbot/internal/ratelimit"
)

// ConfigPath is the config file chosen on the command line.
type ConfigPath string

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		boot.ProvideRuntimeConfig,
		provideLogger,
		provideDBConn,
		provideDBQueries,
		provideLimiter,
	),
)

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

func provideConfig(path ConfigPath) (config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.Init(cfg.Log.Level, cfg.Log.Format)
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideDBQueries(conn *pgxpool.Pool) *dbsqlc.Queries {
	return dbsqlc.New(conn)
}

// limiter carries the in-memory window too so the janitor can sweep it.
type limiter struct {
	ratelimit.Limiter
	window *ratelimit.Window
}

func provideLimiter(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (limiter, error) {
	window := rc.RateWindow
	limit := rc.RateLimit
	if !strings.EqualFold(strings.TrimSpace(cfg.Limits.RateLimitBackend), "redis") {
		w := ratelimit.NewWindow(limit, window)
		return limiter{Limiter: w, window: w}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			log.Info("rate limiter using redis", slog.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return limiter{Limiter: ratelimit.NewRedisWindow(client, limit, window)}, nil
}
