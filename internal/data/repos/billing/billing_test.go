package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos/testutil"
	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
)

func TestSubscriptionGetActiveByCustomer(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSubscriptionRepo(db, testutil.Logger(t))

	cust := testutil.SeedCustomer(t, ctx, tx)
	pro := testutil.SeedPlan(t, ctx, tx, "99.00")
	old := testutil.SeedPlan(t, ctx, tx, "10.00")
	testutil.SeedSubscription(t, ctx, tx, cust.ID, old.ID, types.SubscriptionCanceled)
	active := testutil.SeedSubscription(t, ctx, tx, cust.ID, pro.ID, types.SubscriptionActive)

	got, err := repo.GetActiveByCustomer(dbc, cust.ID)
	if err != nil {
		t.Fatalf("GetActiveByCustomer: %v", err)
	}
	if got == nil || got.ID != active.ID {
		t.Fatalf("expected active subscription %s, got %+v", active.ID, got)
	}
	if got.Plan == nil || !got.Plan.Price.Equal(pro.Price) {
		t.Fatalf("expected preloaded plan priced %s, got %+v", pro.Price, got.Plan)
	}

	none, err := repo.GetActiveByCustomer(dbc, uuid.New())
	if err != nil || none != nil {
		t.Fatalf("expected nil for unknown customer, got %+v err=%v", none, err)
	}
}

func TestUsageSumSince(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUsageRepo(db, testutil.Logger(t))
	cust := testutil.SeedCustomer(t, ctx, tx)

	now := time.Now()
	entries := []*types.UsageLog{
		{CustomerID: cust.ID, Type: types.UsageAIRequest, Quantity: 120, CreatedAt: now.Add(-time.Minute)},
		{CustomerID: cust.ID, Type: types.UsageAIRequest, Quantity: 30, CreatedAt: now.Add(-30 * time.Second)},
		{CustomerID: cust.ID, Type: types.UsageAIRequest, Quantity: 500, CreatedAt: now.Add(-48 * time.Hour)},
		{CustomerID: cust.ID, Type: types.UsageMessage, Quantity: 1, CreatedAt: now},
	}
	for _, e := range entries {
		if err := repo.Create(dbc, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	total, err := repo.SumSince(dbc, cust.ID, types.UsageAIRequest, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("SumSince: %v", err)
	}
	if total != 150 {
		t.Fatalf("expected 150 AI tokens in the last hour, got %d", total)
	}
}
