package webhooks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type WebhookRepo interface {
	ListActiveForEvent(dbc dbctx.Context, chatbotID uuid.UUID, event string) ([]*types.Webhook, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Webhook, error)
	CreateEvent(dbc dbctx.Context, ev *types.WebhookEvent) (*types.WebhookEvent, error)
	GetEvent(dbc dbctx.Context, id uuid.UUID) (*types.WebhookEvent, error)
	UpdateEventFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type webhookRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWebhookRepo(db *gorm.DB, baseLog *logger.Logger) WebhookRepo {
	return &webhookRepo{db: db, log: baseLog.With("repo", "WebhookRepo")}
}

func (r *webhookRepo) ListActiveForEvent(dbc dbctx.Context, chatbotID uuid.UUID, event string) ([]*types.Webhook, error) {
	var out []*types.Webhook
	filter, err := json.Marshal([]string{event})
	if err != nil {
		return nil, err
	}
	if err := dbc.Conn(r.db).
		Where("chatbot_id = ? AND is_active = ? AND events @> ?::jsonb", chatbotID, true, string(filter)).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *webhookRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Webhook, error) {
	var hook types.Webhook
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&hook).Error; err != nil {
		return nil, err
	}
	if hook.ID == uuid.Nil {
		return nil, nil
	}
	return &hook, nil
}

func (r *webhookRepo) CreateEvent(dbc dbctx.Context, ev *types.WebhookEvent) (*types.WebhookEvent, error) {
	if ev == nil {
		return nil, nil
	}
	if ev.Status == "" {
		ev.Status = types.WebhookEventPending
	}
	if err := dbc.Conn(r.db).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *webhookRepo) GetEvent(dbc dbctx.Context, id uuid.UUID) (*types.WebhookEvent, error) {
	var ev types.WebhookEvent
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&ev).Error; err != nil {
		return nil, err
	}
	if ev.ID == uuid.Nil {
		return nil, nil
	}
	return &ev, nil
}

func (r *webhookRepo) UpdateEventFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.Conn(r.db).
		Model(&types.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}
