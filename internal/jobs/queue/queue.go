package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

const (
	DefaultPriority    = 5
	DefaultMaxAttempts = 3
)

// Enqueuer hands a payload to another stage. Stages depend on this, never on each other.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, payload any, opts ...Option) (uuid.UUID, error)
}

type options struct {
	priority    int
	maxAttempts int
	delay       time.Duration
}

type Option func(*options)

// WithPriority sets the scheduling hint; lower runs first.
func WithPriority(p int) Option { return func(o *options) { o.priority = p } }

func WithMaxAttempts(n int) Option { return func(o *options) { o.maxAttempts = n } }

func WithDelay(d time.Duration) Option { return func(o *options) { o.delay = d } }

// Queue is the durable Enqueuer backed by the job_run table.
type Queue struct {
	repo        repos.JobRunRepo
	log         *logger.Logger
	metrics     *observability.Metrics
	maxAttempts int
}

func New(repo repos.JobRunRepo, baseLog *logger.Logger, metrics *observability.Metrics, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Queue{
		repo:        repo,
		log:         baseLog.With("component", "JobQueue"),
		metrics:     metrics,
		maxAttempts: maxAttempts,
	}
}

func (q *Queue) Enqueue(ctx context.Context, queue string, payload any, opts ...Option) (uuid.UUID, error) {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return uuid.Nil, fmt.Errorf("enqueue: empty queue name")
	}
	o := options{priority: DefaultPriority, maxAttempts: q.maxAttempts}
	for _, opt := range opts {
		opt(&o)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue %s: marshal payload: %w", queue, err)
	}
	now := time.Now()
	job := &types.JobRun{
		ID:          uuid.New(),
		Queue:       queue,
		Status:      types.JobQueued,
		Priority:    o.priority,
		RunAfter:    now.Add(o.delay),
		MaxAttempts: o.maxAttempts,
		Payload:     datatypes.JSON(raw),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := q.repo.Create(dbctx.Context{Ctx: ctx}, []*types.JobRun{job}); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue %s: %w", queue, err)
	}
	q.metrics.IncEnqueued(queue, o.priority)
	q.log.Debug("Job enqueued", "queue", queue, "job_id", job.ID, "priority", o.priority)
	return job.ID, nil
}

// Counts returns job counts per queue and status.
func (q *Queue) Counts(ctx context.Context) (map[string]map[string]int64, error) {
	counts, err := q.repo.CountByStatus(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
