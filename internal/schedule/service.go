// Package schedule runs the periodic maintenance jobs: the daily quota reset
// and the janitor that expires in-memory state and stale staging files.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrJobNotFound = errors.New("job not found")

// Each run gets its own deadline so a stuck job cannot pile up behind itself.
const jobTimeout = 5 * time.Minute

type registered struct {
	job     Job
	entryID cron.EntryID
}

type Service struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *slog.Logger
	mu     sync.Mutex
	jobs   map[string]registered
}

func NewService(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Service{
		cron:   cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		parser: parser,
		logger: log.With(slog.String("service", "schedule")),
		jobs:   map[string]registered{},
	}
}

// Add registers job, replacing any job with the same name.
func (s *Service) Add(job Job) error {
	job.Name = strings.TrimSpace(job.Name)
	job.Pattern = strings.TrimSpace(job.Pattern)
	if job.Name == "" || job.Pattern == "" || job.Run == nil {
		return fmt.Errorf("name, pattern and run are required")
	}
	if _, err := s.parser.Parse(job.Pattern); err != nil {
		return fmt.Errorf("parse pattern %q: %w", job.Pattern, err)
	}
	s.Remove(job.Name)

	entryID, err := s.cron.AddFunc(job.Pattern, func() {
		_ = s.run(context.Background(), job)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs[job.Name] = registered{job: job, entryID: entryID}
	s.mu.Unlock()
	s.logger.Info("job scheduled", slog.String("job", job.Name), slog.String("pattern", job.Pattern))
	return nil
}

func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.jobs[name]; ok {
		s.cron.Remove(r.entryID)
		delete(s.jobs, name)
	}
}

// Trigger runs the named job now, outside its schedule.
func (s *Service) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	r, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return ErrJobNotFound
	}
	return s.run(ctx, r.job)
}

func (s *Service) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.jobs))
	for name, r := range s.jobs {
		e := s.cron.Entry(r.entryID)
		out = append(out, Entry{Name: name, Pattern: r.job.Pattern, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs or ctx, whichever ends first.
func (s *Service) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) run(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	started := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", slog.String("job", job.Name), slog.Any("error", err))
		return fmt.Errorf("%s: %w", job.Name, err)
	}
	s.logger.Debug("job finished", slog.String("job", job.Name), slog.Duration("took", time.Since(started)))
	return nil
}
