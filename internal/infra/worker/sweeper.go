package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sourcesage/internal/observability/metrics"
	"sourcesage/internal/repository"
	"sourcesage/pkg/config"
)

// SweepResult describes one completed sweep.
type SweepResult struct {
	Deleted    int64         `json:"deleted"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Err        string        `json:"error,omitempty"`
}

// Sweeper deletes expired cache entries on a cron schedule.
type Sweeper struct {
	Repo    repository.CacheRepository
	Config  SweepConfig
	Logger  *slog.Logger
	Now     func() time.Time
	OnSweep func(SweepResult)

	mu   sync.Mutex
	last *SweepResult
}

// NewSweeper returns a sweeper over repo.
func NewSweeper(repo repository.CacheRepository, cfg SweepConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{Repo: repo, Config: cfg, Logger: logger, Now: time.Now}
}

// RunOnce removes every entry whose expiry is at or before now.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	if s.Repo == nil {
		return 0, fmt.Errorf("sweep: no cache repository configured")
	}
	if s.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Config.Timeout)
		defer cancel()
	}

	start := time.Now()
	deleted, err := s.Repo.DeleteExpired(ctx, s.now())
	elapsed := time.Since(start)

	res := SweepResult{Deleted: deleted, FinishedAt: s.now(), Duration: elapsed}
	if err != nil {
		res.Err = err.Error()
		metrics.RecordCacheSweepFailure(elapsed)
		s.logger().Error("cache sweep failed",
			slog.Duration("duration", elapsed),
			slog.Any("error", err))
	} else {
		metrics.RecordCacheSweep(deleted, elapsed)
		s.logger().Info("cache sweep completed",
			slog.Int64("deleted", deleted),
			slog.Duration("duration", elapsed))
	}
	s.record(res)

	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	return deleted, nil
}

// Start schedules RunOnce and returns the running scheduler. The caller
// stops it with Stop(), whose context is done once in-flight runs finish.
func (s *Sweeper) Start(ctx context.Context) (*cron.Cron, error) {
	loc, err := time.LoadLocation(s.Config.Timezone)
	if err != nil {
		s.logger().Error("invalid timezone, using UTC",
			slog.String("timezone", s.Config.Timezone),
			slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc), cron.WithParser(config.CronParser))
	if _, err := c.AddFunc(s.Config.CronSchedule, func() {
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}

	if s.Config.RunOnStart {
		_, _ = s.RunOnce(ctx)
	}
	c.Start()
	s.logger().Info("cache sweep scheduled",
		slog.String("schedule", s.Config.CronSchedule),
		slog.String("timezone", loc.String()))
	return c, nil
}

// Last returns the most recent result, or nil before the first run.
func (s *Sweeper) Last() *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

func (s *Sweeper) record(res SweepResult) {
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()
	if s.OnSweep != nil {
		s.OnSweep(res)
	}
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
