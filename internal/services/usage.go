package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type UsageEntry struct {
	CustomerID uuid.UUID
	ChatbotID  uuid.UUID
	Type       types.UsageType
	Quantity   int
	Metadata   map[string]any
}

type UsageRecorder interface {
	Record(ctx context.Context, entry UsageEntry) error
}

type usageRecorder struct {
	repo repos.UsageRepo
	log  *logger.Logger
}

func NewUsageRecorder(repo repos.UsageRepo, baseLog *logger.Logger) UsageRecorder {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &usageRecorder{repo: repo, log: baseLog.With("service", "UsageRecorder")}
}

func (u *usageRecorder) Record(ctx context.Context, entry UsageEntry) error {
	if entry.CustomerID == uuid.Nil {
		return fmt.Errorf("usage %s: missing customer id", entry.Type)
	}
	qty := entry.Quantity
	if qty <= 0 {
		qty = 1
	}
	row := &types.UsageLog{
		CustomerID: entry.CustomerID,
		Type:       entry.Type,
		Quantity:   qty,
		Metadata:   types.EncodeMeta(entry.Metadata),
	}
	if entry.ChatbotID != uuid.Nil {
		id := entry.ChatbotID
		row.ChatbotID = &id
	}
	if err := u.repo.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		return fmt.Errorf("usage %s: %w", entry.Type, err)
	}
	u.log.Debug("Usage logged", "customer_id", entry.CustomerID, "type", entry.Type, "quantity", qty)
	return nil
}
