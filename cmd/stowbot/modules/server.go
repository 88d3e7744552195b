package modules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/fx"

	"github.com/memohai/stowbot/internal/auth"
	"github.com/memohai/stowbot/internal/boot"
	"github.com/memohai/stowbot/internal/config"
	"github.com/memohai/stowbot/internal/files"
	"github.com/memohai/stowbot/internal/handlers"
	"github.com/memohai/stowbot/internal/pipeline"
	"github.com/memohai/stowbot/internal/server"
	"github.com/memohai/stowbot/internal/users"
	"github.com/memohai/stowbot/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServerHandler(handlers.NewPingHandler),
		provideServerHandler(provideAuthHandler),
		provideServerHandler(provideIdentitiesHandler),
		provideServerHandler(provideArtifactsHandler),
		provideServerHandler(provideStatsHandler),
		provideServer,
	),
	fx.Invoke(startServer),
)

// ---------------------------------------------------------------------------
// server
// ---------------------------------------------------------------------------

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) *handlers.AuthHandler {
	admin := auth.Admin{Username: cfg.Admin.Username, PasswordHash: cfg.Admin.PasswordHash}
	return handlers.NewAuthHandler(log, admin, rc.JwtSecret, rc.JwtExpiresIn)
}

func provideIdentitiesHandler(log *slog.Logger, svc *users.Service) *handlers.IdentitiesHandler {
	return handlers.NewIdentitiesHandler(log, svc)
}

func provideArtifactsHandler(log *slog.Logger, svc *files.Service) *handlers.ArtifactsHandler {
	return handlers.NewArtifactsHandler(log, svc)
}

func provideStatsHandler(log *slog.Logger, p *pipeline.Service, artifacts *files.Service, identities *users.Service) *handlers.StatsHandler {
	return handlers.NewStatsHandler(log, p, artifacts, identities)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.RuntimeConfig.JwtSecret, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	logger.Info("starting stowbot", slog.String("version", version.GetInfo()))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if strings.TrimSpace(cfg.Admin.PasswordHash) == "" {
				logger.Warn("admin console login disabled: admin.password_hash not set")
			}
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
