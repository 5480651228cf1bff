package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
)

func SeedCustomer(tb testing.TB, ctx context.Context, tx *gorm.DB) *types.Customer {
	tb.Helper()
	c := &types.Customer{
		ID:    uuid.New(),
		Name:  "customer",
		Email: uuid.NewString() + "@example.com",
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed customer: %v", err)
	}
	return c
}

func SeedPlan(tb testing.TB, ctx context.Context, tx *gorm.DB, price string) *types.Plan {
	tb.Helper()
	p := &types.Plan{
		ID:    uuid.New(),
		Name:  "plan-" + uuid.NewString()[:8],
		Price: decimal.RequireFromString(price),
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed plan: %v", err)
	}
	return p
}

func SeedSubscription(tb testing.TB, ctx context.Context, tx *gorm.DB, customerID, planID uuid.UUID, status types.SubscriptionStatus) *types.Subscription {
	tb.Helper()
	s := &types.Subscription{
		ID:         uuid.New(),
		CustomerID: customerID,
		PlanID:     planID,
		Status:     status,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed subscription: %v", err)
	}
	return s
}

func SeedChatbot(tb testing.TB, ctx context.Context, tx *gorm.DB, customerID uuid.UUID) *types.Chatbot {
	tb.Helper()
	c := &types.Chatbot{
		ID:         uuid.New(),
		CustomerID: customerID,
		Name:       "bot",
		AIProvider: "openai",
		AIModel:    "gpt-4o-mini",
		IsActive:   true,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed chatbot: %v", err)
	}
	return c
}

func SeedWebhook(tb testing.TB, ctx context.Context, tx *gorm.DB, chatbotID uuid.UUID, active bool, events ...string) *types.Webhook {
	tb.Helper()
	w := &types.Webhook{
		ID:        uuid.New(),
		ChatbotID: chatbotID,
		URL:       "https://hooks.example.com/" + uuid.NewString(),
		Events:    datatypes.JSONSlice[string](events),
		Secret:    "s3cret",
		IsActive:  true,
	}
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		tb.Fatalf("seed webhook: %v", err)
	}
	// gorm skips zero-valued fields with defaults on create
	if !active {
		if err := tx.WithContext(ctx).Model(w).Update("is_active", false).Error; err != nil {
			tb.Fatalf("deactivate webhook: %v", err)
		}
		w.IsActive = false
	}
	return w
}
