package modules

import (
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/memohai/stowbot/internal/admission"
	"github.com/memohai/stowbot/internal/boot"
	"github.com/memohai/stowbot/internal/config"
	dbsqlc "github.com/memohai/stowbot/internal/db/sqlc"
	"github.com/memohai/stowbot/internal/extractor"
	"github.com/memohai/stowbot/internal/files"
	"github.com/memohai/stowbot/internal/finalize"
	"github.com/memohai/stowbot/internal/pipeline"
	"github.com/memohai/stowbot/internal/quota"
	"github.com/memohai/stowbot/internal/staging"
	"github.com/memohai/stowbot/internal/storage"
	"github.com/memohai/stowbot/internal/telegram"
	"github.com/memohai/stowbot/internal/users"
)

var DomainModule = fx.Module(
	"domain",
	fx.Provide(
		provideUsers,
		files.NewService,
		provideGuard,
		provideAdmission,
		provideStaging,
		provideExtractor,
		provideFinalizer,
		providePipeline,
	),
)

func provideUsers(log *slog.Logger, queries *dbsqlc.Queries, rc *boot.RuntimeConfig) *users.Service {
	return users.NewService(log, queries, users.Quotas{
		Regular:    rc.DailyQuota,
		Privileged: rc.PrivilegedDaily,
	})
}

func provideGuard(rc *boot.RuntimeConfig, ledger *files.Service) *quota.Guard {
	return quota.NewGuard(quota.Ceilings{
		Regular:    rc.RegularCeiling,
		Privileged: rc.PrivilegedCeiling,
	}, ledger)
}

func provideAdmission(rc *boot.RuntimeConfig) *admission.Controller {
	return admission.NewController(rc.MaxConcurrent, rc.SessionTTL)
}

func provideStaging(log *slog.Logger, cfg config.Config) (*staging.Area, error) {
	return staging.NewArea(log, cfg.Staging.Dir)
}

func provideExtractor(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) *extractor.CatalogCache {
	inner := extractor.NewYTDLP(log, extractor.Options{
		Binary:    cfg.Extractor.Binary,
		UserAgent: cfg.Extractor.UserAgent,
		ExtraArgs: cfg.Extractor.ExtraArgs,
	})
	return extractor.NewCatalogCache(inner, rc.CatalogTTL, rc.ProbeTimeout)
}

func provideFinalizer(log *slog.Logger, store storage.Provider, guard *quota.Guard, expiry linkExpiry) *finalize.Service {
	return finalize.NewService(log, store, guard, time.Duration(expiry))
}

type pipelineParams struct {
	fx.In

	Logger     *slog.Logger
	Runtime    *boot.RuntimeConfig
	Limiter    limiter
	Identities *users.Service
	Guard      *quota.Guard
	Admission  *admission.Controller
	Extractor  *extractor.CatalogCache
	Fetcher    *telegram.FileFetcher
	Staging    *staging.Area
	Finalizer  *finalize.Service
}

func providePipeline(p pipelineParams) *pipeline.Service {
	return pipeline.NewService(p.Logger, pipeline.Deps{
		Limiter:    p.Limiter,
		Identities: p.Identities,
		Guard:      p.Guard,
		Admission:  p.Admission,
		Extractor:  p.Extractor,
		Direct:     p.Fetcher,
		Staging:    p.Staging,
		Finalizer:  p.Finalizer,
	}, pipeline.Options{
		TransferTimeout:   p.Runtime.TransferTimeout,
		ProbeTimeout:      p.Runtime.ProbeTimeout,
		MaxBytesPerSecond: p.Runtime.MaxBytesPerSecond,
	})
}
