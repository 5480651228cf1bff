package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

// EventMirror receives a copy of every dispatched event envelope.
type EventMirror interface {
	Publish(ctx context.Context, event string, body []byte) error
}

// WebhookEnvelope is the body POSTed to subscribers.
type WebhookEnvelope struct {
	Event     string    `json:"event"`
	ChatbotID uuid.UUID `json:"chatbotId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// WebhookDispatcher fans an event out to the chatbot's subscribed webhooks.
// Dispatch is best-effort; it returns how many deliveries were queued.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, chatbotID uuid.UUID, event string, data any) int
}

type webhookDispatcher struct {
	repo   repos.WebhookRepo
	jobs   queue.Enqueuer
	mirror EventMirror
	log    *logger.Logger
	now    func() time.Time
}

func NewWebhookDispatcher(repo repos.WebhookRepo, jobs queue.Enqueuer, mirror EventMirror, baseLog *logger.Logger) WebhookDispatcher {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &webhookDispatcher{
		repo:   repo,
		jobs:   jobs,
		mirror: mirror,
		log:    baseLog.With("service", "WebhookDispatcher"),
		now:    time.Now,
	}
}

func (d *webhookDispatcher) Dispatch(ctx context.Context, chatbotID uuid.UUID, event string, data any) int {
	if d == nil || chatbotID == uuid.Nil || event == "" {
		return 0
	}
	body, err := json.Marshal(WebhookEnvelope{
		Event:     event,
		ChatbotID: chatbotID,
		Timestamp: d.now().UTC(),
		Data:      data,
	})
	if err != nil {
		d.log.Warn("Webhook payload marshal failed", "event", event, "error", err)
		return 0
	}

	if d.mirror != nil {
		if err := d.mirror.Publish(ctx, event, body); err != nil {
			d.log.Warn("Event mirror publish failed", "event", event, "error", err)
		}
	}
	if d.repo == nil || d.jobs == nil {
		return 0
	}

	dbc := dbctx.Context{Ctx: ctx}
	hooks, err := d.repo.ListActiveForEvent(dbc, chatbotID, event)
	if err != nil {
		d.log.Warn("Webhook lookup failed", "chatbot_id", chatbotID, "event", event, "error", err)
		return 0
	}

	queued := 0
	for _, hook := range hooks {
		if hook == nil || hook.URL == "" {
			continue
		}
		row, err := d.repo.CreateEvent(dbc, &types.WebhookEvent{
			WebhookID: hook.ID,
			Event:     event,
			Payload:   datatypes.JSON(body),
			Status:    types.WebhookEventPending,
		})
		if err != nil || row == nil {
			d.log.Warn("Webhook event create failed", "webhook_id", hook.ID, "event", event, "error", err)
			continue
		}
		_, err = d.jobs.Enqueue(ctx, jobtypes.QueueWebhook, jobtypes.WebhookDeliveryJob{
			URL:            hook.URL,
			Event:          event,
			Payload:        json.RawMessage(body),
			WebhookEventID: row.ID,
			WebhookID:      hook.ID,
		})
		if err != nil {
			d.log.Warn("Webhook delivery enqueue failed", "webhook_id", hook.ID, "event_id", row.ID, "error", err)
			continue
		}
		queued++
	}
	return queued
}
