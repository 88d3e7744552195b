package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	QuotaResetJob = "quota_reset"
	JanitorJob    = "janitor"
)

// QuotaResetter refills every identity's daily allowance.
type QuotaResetter interface {
	ResetDailyQuotas(ctx context.Context) (int64, error)
}

// QuotaReset returns the daily reset job.
func QuotaReset(pattern string, r QuotaResetter) Job {
	return Job{
		Name:    QuotaResetJob,
		Pattern: pattern,
		Run: func(ctx context.Context) error {
			_, err := r.ResetDailyQuotas(ctx)
			return err
		},
	}
}

// Sweeper drops expired in-memory state and reports how much it removed.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Purger removes files last modified before cutoff.
type Purger interface {
	Purge(cutoff time.Time) (int, error)
}

type sweeper struct {
	name string
	s    Sweeper
}

// Janitor sweeps the registered in-memory stores and purges stale staging files.
type Janitor struct {
	logger   *slog.Logger
	sweepers []sweeper
	purger   Purger
	maxAge   time.Duration
	now      func() time.Time
}

// NewJanitor purges staging files older than maxAge when purger is set.
func NewJanitor(log *slog.Logger, purger Purger, maxAge time.Duration) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{
		logger: log.With(slog.String("service", "janitor")),
		purger: purger,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (j *Janitor) Add(name string, s Sweeper) *Janitor {
	if s != nil {
		j.sweepers = append(j.sweepers, sweeper{name: name, s: s})
	}
	return j
}

func (j *Janitor) Run(ctx context.Context) error {
	now := j.now()
	attrs := make([]any, 0, len(j.sweepers)+1)
	for _, sw := range j.sweepers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n := sw.s.Sweep(now); n > 0 {
			attrs = append(attrs, slog.Int(sw.name, n))
		}
	}
	var errs []error
	if j.purger != nil && j.maxAge > 0 {
		n, err := j.purger.Purge(now.Add(-j.maxAge))
		if err != nil {
			errs = append(errs, err)
		}
		if n > 0 {
			attrs = append(attrs, slog.Int("staging_files", n))
		}
	}
	if len(attrs) > 0 {
		j.logger.Info("janitor swept", attrs...)
	}
	return errors.Join(errs...)
}

// Job returns the janitor as a schedulable job.
func (j *Janitor) Job(pattern string) Job {
	return Job{Name: JanitorJob, Pattern: pattern, Run: j.Run}
}
