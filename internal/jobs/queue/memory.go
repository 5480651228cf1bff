package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Recorded is one call captured by Recorder.
type Recorded struct {
	ID       uuid.UUID
	Queue    string
	Payload  json.RawMessage
	Priority int
}

// Recorder is an in-memory Enqueuer that keeps every job it receives.
type Recorder struct {
	mu   sync.Mutex
	jobs []Recorded
	Err  error
}

func (r *Recorder) Enqueue(_ context.Context, queue string, payload any, opts ...Option) (uuid.UUID, error) {
	if r.Err != nil {
		return uuid.Nil, r.Err
	}
	o := options{priority: DefaultPriority}
	for _, opt := range opts {
		opt(&o)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}
	rec := Recorded{ID: uuid.New(), Queue: queue, Payload: raw, Priority: o.priority}
	r.mu.Lock()
	r.jobs = append(r.jobs, rec)
	r.mu.Unlock()
	return rec.ID, nil
}

// Jobs returns the recorded jobs for queue, or all jobs when queue is empty.
func (r *Recorder) Jobs(queue string) []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, 0, len(r.jobs))
	for _, j := range r.jobs {
		if queue == "" || j.Queue == queue {
			out = append(out, j)
		}
	}
	return out
}

// Decode unmarshals the i-th job recorded for queue into dst.
func (r *Recorder) Decode(queue string, i int, dst any) error {
	jobs := r.Jobs(queue)
	if i < 0 || i >= len(jobs) {
		return errIndex
	}
	return json.Unmarshal(jobs[i].Payload, dst)
}

var errIndex = errors.New("queue: no recorded job at index")
