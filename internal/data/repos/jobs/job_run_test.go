package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos/testutil"
	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	jobstatus "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain/jobs"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
)

func TestJobRunRepoClaimOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	queue := "test-queue-" + uuid.NewString()

	mk := func(priority int, age time.Duration, runAfter time.Time) *types.JobRun {
		return &types.JobRun{
			ID:          uuid.New(),
			Queue:       queue,
			Status:      jobstatus.StatusQueued,
			Priority:    priority,
			RunAfter:    runAfter,
			MaxAttempts: 3,
			Payload:     datatypes.JSON([]byte("{}")),
			CreatedAt:   now.Add(-age),
			UpdatedAt:   now.Add(-age),
		}
	}
	oldLow := mk(5, 3*time.Hour, now.Add(-time.Minute))
	newHigh := mk(1, time.Minute, now.Add(-time.Minute))
	olderHigh := mk(1, time.Hour, now.Add(-time.Minute))
	delayed := mk(1, 2*time.Hour, now.Add(time.Hour))

	if _, err := repo.Create(dbc, []*types.JobRun{oldLow, newHigh, olderHigh, delayed}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	want := []uuid.UUID{olderHigh.ID, newHigh.ID, oldLow.ID}
	for i, id := range want {
		got, err := repo.ClaimNextRunnable(dbc, queue, 30*time.Minute)
		if err != nil {
			t.Fatalf("ClaimNextRunnable #%d: %v", i, err)
		}
		if got == nil || got.ID != id {
			t.Fatalf("ClaimNextRunnable #%d: expected %s, got %+v", i, id, got)
		}
		if got.Attempts != 1 || got.Status != jobstatus.StatusRunning {
			t.Fatalf("ClaimNextRunnable #%d: attempts=%d status=%s", i, got.Attempts, got.Status)
		}
	}

	if got, err := repo.ClaimNextRunnable(dbc, queue, 30*time.Minute); err != nil || got != nil {
		t.Fatalf("expected delayed job to stay unclaimed, got=%v err=%v", got, err)
	}

	finished := now.Add(-2 * time.Hour)
	if err := repo.UpdateFields(dbc, oldLow.ID, map[string]interface{}{
		"status":      jobstatus.StatusSucceeded,
		"finished_at": finished,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	purged, err := repo.PurgeFinished(dbc, jobstatus.StatusSucceeded, now.Add(-time.Hour))
	if err != nil || purged != 1 {
		t.Fatalf("PurgeFinished: purged=%d err=%v", purged, err)
	}

	counts, err := repo.CountByStatus(dbc)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[queue][jobstatus.StatusRunning] != 2 || counts[queue][jobstatus.StatusQueued] != 1 {
		t.Fatalf("CountByStatus: unexpected %+v", counts[queue])
	}
}
