package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

/*
Context is the execution handle for one claimed job.
	- Ctx: cancelled when the worker shuts down
	- Job: the claimed job_run row; Attempts already counts this run
	- Log: logger scoped to the queue and job id
Handlers return nil to succeed, an error to retry, or Permanent(err) to fail now.
*/
type Context struct {
	Ctx context.Context
	Job *types.JobRun
	Log *logger.Logger
}

func NewContext(ctx context.Context, job *types.JobRun, log *logger.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = logger.Nop()
	}
	if job != nil {
		log = log.With("job_id", job.ID, "attempt", job.Attempts)
	}
	return &Context{Ctx: ctx, Job: job, Log: log}
}

type validatable interface {
	Validate() error
}

// Decode unmarshals the job payload into dst and validates it when dst supports it.
// A malformed payload can never succeed, so the error is permanent.
func (c *Context) Decode(dst any) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return Permanent(fmt.Errorf("empty job payload"))
	}
	if err := json.Unmarshal(c.Job.Payload, dst); err != nil {
		return Permanent(fmt.Errorf("decode job payload: %w", err))
	}
	if v, ok := dst.(validatable); ok {
		if err := v.Validate(); err != nil {
			return Permanent(err)
		}
	}
	return nil
}

func (c *Context) JobID() uuid.UUID {
	if c.Job == nil {
		return uuid.Nil
	}
	return c.Job.ID
}

// Attempt is the 1-based number of the current run.
func (c *Context) Attempt() int {
	if c.Job == nil || c.Job.Attempts < 1 {
		return 1
	}
	return c.Job.Attempts
}

func (c *Context) FirstAttempt() bool { return c.Attempt() == 1 }

// FinalAttempt reports whether a failure now exhausts the retry budget.
func (c *Context) FinalAttempt() bool {
	return c.Job == nil || c.Job.FinalAttempt()
}
