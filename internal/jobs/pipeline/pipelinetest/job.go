package pipelinetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	jobrt "github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/runtime"
)

// Job builds a runtime context for payload on the given 1-based attempt of 3.
func Job(t *testing.T, payload any, attempt int) *jobrt.Context {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return jobrt.NewContext(context.Background(), &types.JobRun{
		ID:          uuid.New(),
		Attempts:    attempt,
		MaxAttempts: 3,
		Payload:     raw,
	}, nil)
}
