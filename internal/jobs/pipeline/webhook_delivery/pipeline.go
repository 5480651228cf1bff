package webhook_delivery

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	jobrt "github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/runtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

const maxErrorBody = 512

func (p *Pipeline) Run(jc *jobrt.Context) error {
	var job jobtypes.WebhookDeliveryJob
	if err := jc.Decode(&job); err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: jc.Ctx}
	log := jc.Log.With("webhook_event_id", job.WebhookEventID, "event", job.Event)

	var hook *types.Webhook
	if job.WebhookID != uuid.Nil {
		h, err := p.repo.GetByID(dbc, job.WebhookID)
		if err != nil {
			return fmt.Errorf("load webhook: %w", err)
		}
		if h == nil {
			p.update(jc, log, job.WebhookEventID, map[string]interface{}{
				"status":     types.WebhookEventFailed,
				"attempts":   jc.Attempt(),
				"last_error": "webhook deleted",
			})
			return jobrt.Permanent(fmt.Errorf("webhook %s not found", job.WebhookID))
		}
		hook = h
	}

	deliveryID := job.WebhookEventID.String()
	if hook != nil {
		deliveryID = hook.ID.String()
	}
	req := p.http.R().
		SetContext(jc.Ctx).
		SetHeader(HeaderEvent, job.Event).
		SetHeader(HeaderID, deliveryID).
		SetHeader(HeaderAttempt, strconv.Itoa(jc.Attempt())).
		SetBody([]byte(job.Payload))
	if hook != nil && hook.Secret != "" {
		sig, err := Sign(hook.Secret, job.Event, hook.ID.String(), job.WebhookEventID.String(), job.Payload, time.Now())
		if err != nil {
			return jobrt.Permanent(fmt.Errorf("sign webhook: %w", err))
		}
		req.SetHeader(HeaderSignature, sig)
	}

	resp, err := req.Post(job.URL)
	status := 0
	if err == nil {
		status = resp.StatusCode()
		if !resp.IsSuccess() {
			body := resp.String()
			if len(body) > maxErrorBody {
				body = body[:maxErrorBody]
			}
			err = fmt.Errorf("webhook endpoint returned %d: %s", status, body)
		}
	}

	if err == nil {
		p.metrics.IncWebhookDelivery(job.Event, "ok")
		p.update(jc, log, job.WebhookEventID, map[string]interface{}{
			"status":          types.WebhookEventSent,
			"attempts":        jc.Attempt(),
			"response_status": status,
			"delivered_at":    time.Now(),
			"last_error":      "",
		})
		log.Info("Webhook delivered", "status", status)
		return nil
	}

	next := types.WebhookEventPending
	if jc.FinalAttempt() {
		next = types.WebhookEventFailed
	}
	p.metrics.IncWebhookDelivery(job.Event, "error")
	p.update(jc, log, job.WebhookEventID, map[string]interface{}{
		"status":          next,
		"attempts":        jc.Attempt(),
		"response_status": status,
		"last_error":      err.Error(),
	})
	log.Warn("Webhook delivery failed", "attempt", jc.Attempt(), "status", status, "error", err)
	return err
}

func (p *Pipeline) update(jc *jobrt.Context, log *logger.Logger, id uuid.UUID, updates map[string]interface{}) {
	if err := p.repo.UpdateEventFields(dbctx.Context{Ctx: jc.Ctx}, id, updates); err != nil {
		log.Warn("Webhook event not updated", "error", err)
	}
}
