package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/runtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeRetry     = "retry"
	outcomeFailed    = "failed"
)

// QueueConfig tunes one queue's pool. Zero values take the Config defaults.
type QueueConfig struct {
	Concurrency int
	RateLimit   float64
	Burst       int
}

type Config struct {
	PollInterval      time.Duration
	StaleRunning      time.Duration
	HeartbeatInterval time.Duration
	BackoffBase       time.Duration
	BackoffMax        time.Duration

	DefaultConcurrency int
	// DefaultRateLimit is jobs per second per queue.
	DefaultRateLimit float64
	Queues           map[string]QueueConfig
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 5 * time.Minute
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = time.Hour
	}
	if c.DefaultConcurrency <= 0 {
		c.DefaultConcurrency = 4
	}
	if c.DefaultRateLimit <= 0 {
		c.DefaultRateLimit = 10
	}
	return c
}

func (c Config) queue(name string) QueueConfig {
	qc := c.Queues[name]
	if qc.Concurrency <= 0 {
		qc.Concurrency = c.DefaultConcurrency
	}
	if qc.RateLimit <= 0 {
		qc.RateLimit = c.DefaultRateLimit
	}
	if qc.Burst <= 0 {
		qc.Burst = max(1, int(qc.RateLimit))
	}
	return qc
}

// Backoff is base * 2^(attempt-1), capped at maxDelay.
func Backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return min(d, maxDelay)
}

// Worker runs one pool of goroutines per registered queue.
type Worker struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	metrics  *observability.Metrics
	tracer   trace.Tracer
	cfg      Config
	now      func() time.Time
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, metrics *observability.Metrics, cfg Config) *Worker {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		metrics:  metrics,
		tracer:   observability.Tracer(),
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled and every in-flight job has returned.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, queue := range w.registry.Queues() {
		h, _ := w.registry.Get(queue)
		qc := w.cfg.queue(queue)
		limiter := rate.NewLimiter(rate.Limit(qc.RateLimit), qc.Burst)
		w.log.Info("Starting queue pool", "queue", queue, "concurrency", qc.Concurrency, "rate_limit", qc.RateLimit)
		for i := 0; i < qc.Concurrency; i++ {
			wg.Add(1)
			go func(workerID int) {
				defer wg.Done()
				w.runLoop(ctx, queue, h, limiter, workerID)
			}(i + 1)
		}
	}
	<-ctx.Done()
	wg.Wait()
	w.log.Info("Job worker stopped")
	return nil
}

func (w *Worker) runLoop(ctx context.Context, queue string, h runtime.Handler, limiter *rate.Limiter, workerID int) {
	log := w.log.With("queue", queue, "worker_id", workerID)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, queue, w.cfg.StaleRunning)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("ClaimNextRunnable failed", "error", err)
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.PollInterval):
			}
			continue
		}
		w.process(ctx, log, queue, h, job)
	}
}

// process runs one claimed job and writes its terminal or retry state. The write uses
// a fresh context so a shutdown mid-run still records the outcome.
func (w *Worker) process(ctx context.Context, log *logger.Logger, queue string, h runtime.Handler, job *types.JobRun) string {
	jobCtx, span := w.tracer.Start(ctx, "job."+queue, trace.WithAttributes(
		attribute.String("job.queue", queue),
		attribute.String("job.id", job.ID.String()),
		attribute.Int("job.attempt", job.Attempts),
	))
	defer span.End()

	stopHeartbeat := w.startHeartbeat(jobCtx, log, job)
	start := w.now()
	runErr := w.runHandler(jobCtx, log, h, job)
	stopHeartbeat()
	dur := w.now().Sub(start)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	outcome, updates := w.outcome(job, runErr)
	if err := w.repo.UpdateFields(dbctx.Context{Ctx: writeCtx}, job.ID, updates); err != nil {
		log.Error("Failed to record job outcome", "job_id", job.ID, "outcome", outcome, "error", err)
	}
	w.metrics.ObserveJob(queue, outcome, dur)

	switch outcome {
	case outcomeSucceeded:
		log.Debug("Job succeeded", "job_id", job.ID, "attempt", job.Attempts, "duration_ms", dur.Milliseconds())
	case outcomeRetry:
		span.SetStatus(codes.Error, runErr.Error())
		log.Warn("Job failed, will retry", "job_id", job.ID, "attempt", job.Attempts, "max_attempts", job.MaxAttempts, "run_after", updates["run_after"], "error", runErr)
	default:
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		log.Error("Job failed permanently", "job_id", job.ID, "attempt", job.Attempts, "permanent", runtime.IsPermanent(runErr), "error", runErr)
	}
	return outcome
}

func (w *Worker) outcome(job *types.JobRun, runErr error) (string, map[string]interface{}) {
	now := w.now()
	if runErr == nil {
		return outcomeSucceeded, map[string]interface{}{
			"status":      types.JobSucceeded,
			"error":       "",
			"finished_at": now,
			"locked_at":   nil,
		}
	}
	if runtime.IsPermanent(runErr) || job.FinalAttempt() {
		return outcomeFailed, map[string]interface{}{
			"status":        types.JobFailed,
			"error":         runErr.Error(),
			"last_error_at": now,
			"finished_at":   now,
			"locked_at":     nil,
		}
	}
	return outcomeRetry, map[string]interface{}{
		"status":        types.JobQueued,
		"error":         runErr.Error(),
		"last_error_at": now,
		"run_after":     now.Add(Backoff(w.cfg.BackoffBase, w.cfg.BackoffMax, job.Attempts)),
		"locked_at":     nil,
		"heartbeat_at":  nil,
	}
}

func (w *Worker) runHandler(ctx context.Context, log *logger.Logger, h runtime.Handler, job *types.JobRun) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job handler panic", "job_id", job.ID, "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Run(runtime.NewContext(ctx, job, log))
}

func (w *Worker) startHeartbeat(ctx context.Context, log *logger.Logger, job *types.JobRun) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(w.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: hbCtx}, job.ID); err != nil && hbCtx.Err() == nil {
					log.Warn("Job heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
