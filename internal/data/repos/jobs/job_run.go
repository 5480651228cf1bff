package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	jobstatus "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain/jobs"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

// QueueCounts maps queue -> status -> rows.
type QueueCounts map[string]map[string]int64

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error)
	ListByQueue(dbc dbctx.Context, queue string, status string, limit int) ([]*types.JobRun, error)
	// ClaimNextRunnable locks the most urgent runnable row of queue and marks it running.
	// Running rows whose heartbeat is older than staleRunning are reclaimed.
	ClaimNextRunnable(dbc dbctx.Context, queue string, staleRunning time.Duration) (*types.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	PurgeFinished(dbc dbctx.Context, status string, finishedBefore time.Time) (int64, error)
	CountByStatus(dbc dbctx.Context) (QueueCounts, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	if err := dbc.Conn(r.db).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	var job types.JobRun
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&job).Error; err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRunRepo) ListByQueue(dbc dbctx.Context, queue string, status string, limit int) ([]*types.JobRun, error) {
	if limit <= 0 {
		limit = 50
	}
	q := dbc.Conn(r.db).Where("queue = ?", queue)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*types.JobRun
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, queue string, staleRunning time.Duration) (*types.JobRun, error) {
	now := time.Now()
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.JobRun
	err := dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue = ?", queue).
			Where(`
        (
          (status = ? AND run_after <= ?)
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, jobstatus.StatusQueued, now, jobstatus.StatusRunning, staleCutoff).
			Order("priority ASC").
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       jobstatus.StatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = jobstatus.StatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.Conn(r.db).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	now := time.Now()
	return dbc.Conn(r.db).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, jobstatus.StatusRunning).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
}

func (r *jobRunRepo) PurgeFinished(dbc dbctx.Context, status string, finishedBefore time.Time) (int64, error) {
	res := dbc.Conn(r.db).
		Where("status = ? AND finished_at IS NOT NULL AND finished_at < ?", status, finishedBefore).
		Delete(&types.JobRun{})
	return res.RowsAffected, res.Error
}

func (r *jobRunRepo) CountByStatus(dbc dbctx.Context) (QueueCounts, error) {
	var rows []struct {
		Queue  string
		Status string
		Total  int64
	}
	if err := dbc.Conn(r.db).
		Model(&types.JobRun{}).
		Select("queue, status, COUNT(*) AS total").
		Group("queue, status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := QueueCounts{}
	for _, row := range rows {
		if out[row.Queue] == nil {
			out[row.Queue] = map[string]int64{}
		}
		out[row.Queue][row.Status] = row.Total
	}
	return out, nil
}
