package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

const (
	DefaultSucceededTTL = time.Hour
	DefaultFailedTTL    = 24 * time.Hour
	DefaultSchedule     = "@every 5m"
)

type Config struct {
	SucceededTTL time.Duration
	FailedTTL    time.Duration
	// Schedule is a robfig/cron spec.
	Schedule string
}

// Sweeper purges finished job_run rows once they outlive their retention window.
type Sweeper struct {
	repo repos.JobRunRepo
	log  *logger.Logger
	cfg  Config
	cron *cron.Cron
	now  func() time.Time
}

func NewSweeper(repo repos.JobRunRepo, baseLog *logger.Logger, cfg Config) *Sweeper {
	if cfg.SucceededTTL <= 0 {
		cfg.SucceededTTL = DefaultSucceededTTL
	}
	if cfg.FailedTTL <= 0 {
		cfg.FailedTTL = DefaultFailedTTL
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Sweeper{
		repo: repo,
		log:  baseLog.With("component", "JobRetention"),
		cfg:  cfg,
		cron: cron.New(),
		now:  time.Now,
	}
}

// Run schedules the sweep and blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() { s.Sweep(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("Job retention sweeper started", "schedule", s.cfg.Schedule,
		"succeeded_ttl", s.cfg.SucceededTTL.String(), "failed_ttl", s.cfg.FailedTTL.String())
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("Job retention sweeper stopped")
	return nil
}

// Sweep deletes succeeded and failed rows past their TTL and returns the count removed.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	if ctx.Err() != nil {
		return 0
	}
	now := s.now()
	var total int64
	for _, p := range []struct {
		status string
		ttl    time.Duration
	}{
		{types.JobSucceeded, s.cfg.SucceededTTL},
		{types.JobFailed, s.cfg.FailedTTL},
	} {
		n, err := s.repo.PurgeFinished(dbctx.Context{Ctx: ctx}, p.status, now.Add(-p.ttl))
		if err != nil {
			s.log.Warn("Job purge failed", "status", p.status, "error", err)
			continue
		}
		total += n
	}
	if total > 0 {
		s.log.Info("Purged finished jobs", "count", total)
	}
	return total
}
