package modules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/memohai/stowbot/internal/admission"
	"github.com/memohai/stowbot/internal/boot"
	"github.com/memohai/stowbot/internal/extractor"
	"github.com/memohai/stowbot/internal/schedule"
	"github.com/memohai/stowbot/internal/staging"
	"github.com/memohai/stowbot/internal/users"
)

// Staging files older than this belong to a crashed or abandoned transfer.
const stagingMaxAge = 6 * time.Hour

var ScheduleModule = fx.Module(
	"schedule",
	fx.Provide(
		schedule.NewService,
		provideJanitor,
	),
	fx.Invoke(startSchedule),
)

type janitorParams struct {
	fx.In

	Logger    *slog.Logger
	Limiter   limiter
	Admission *admission.Controller
	Catalogs  *extractor.CatalogCache
	Staging   *staging.Area
}

func provideJanitor(p janitorParams) *schedule.Janitor {
	j := schedule.NewJanitor(p.Logger, p.Staging, stagingMaxAge).
		Add("sessions", p.Admission).
		Add("catalogs", p.Catalogs)
	if p.Limiter.window != nil {
		j.Add("rate_windows", p.Limiter.window)
	}
	return j
}

func startSchedule(lc fx.Lifecycle, rc *boot.RuntimeConfig, svc *schedule.Service, janitor *schedule.Janitor, identities *users.Service) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := svc.Add(schedule.QuotaReset(rc.QuotaResetSchedule, identities)); err != nil {
				return fmt.Errorf("schedule quota reset: %w", err)
			}
			if err := svc.Add(janitor.Job("@every 1m")); err != nil {
				return fmt.Errorf("schedule janitor: %w", err)
			}
			svc.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return svc.Stop(ctx)
		},
	})
}
