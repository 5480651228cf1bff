package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// JobRun is one durable queue entry. Claim order is priority ASC, created_at ASC among rows
// whose run_after has passed.
type JobRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Queue       string         `gorm:"column:queue;not null;index:idx_job_run_claim,priority:1" json:"queue"`
	Status      string         `gorm:"column:status;not null;index:idx_job_run_claim,priority:2" json:"status"`
	Priority    int            `gorm:"column:priority;not null;default:5;index:idx_job_run_claim,priority:3" json:"priority"`
	RunAfter    time.Time      `gorm:"column:run_after;not null;default:now();index" json:"run_after"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts int            `gorm:"column:max_attempts;not null;default:3" json:"max_attempts"`
	Error       string         `gorm:"column:error;type:text" json:"error,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	FinishedAt  *time.Time     `gorm:"column:finished_at;index" json:"finished_at,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index:idx_job_run_claim,priority:4" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_run" }

// FinalAttempt reports whether the attempt currently running is the last one allowed.
func (j *JobRun) FinalAttempt() bool {
	return j != nil && j.Attempts >= j.MaxAttempts
}

