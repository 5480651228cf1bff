// Package pipeline wires the message stages onto a job registry.
package pipeline

import (
	"net/http"
	"time"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/pipeline/ai_processing"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/pipeline/incoming_message"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/pipeline/outgoing_message"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/pipeline/webhook_delivery"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/pipeline/whatsapp_cloud_send"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/pipeline/whatsapp_qr_send"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/runtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

type Deps struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	Chatbots      repos.ChatbotRepo
	Conversations repos.ConversationRepo
	Messages      repos.MessageRepo
	WhatsApp      repos.WhatsAppRepo
	Webhooks      repos.WebhookRepo

	Jobs     queue.Enqueuer
	Priority services.PriorityResolver
	Usage    services.UsageRecorder
	Notifier services.DeliveryNotifier
	Dispatch services.WebhookDispatcher

	AI        ai_processing.Generator
	Knowledge ai_processing.Retriever
	Cloud     whatsapp_cloud_send.Sender
	QR        whatsapp_qr_send.Sender

	// WebhookHTTP overrides the webhook delivery transport.
	WebhookHTTP *http.Client

	// AIRequestTimeout bounds each vendor call; zero keeps the stage default.
	AIRequestTimeout time.Duration
}

// RegisterAll registers one handler per pipeline queue.
func RegisterAll(reg *runtime.Registry, d Deps) error {
	handlers := []runtime.Handler{
		incoming_message.New(d.Log, d.Chatbots, d.Conversations, d.Messages, d.Jobs, d.Priority, d.Usage, d.Notifier, d.Dispatch),
		ai_processing.New(d.Log, d.Conversations, d.Messages, d.AI, d.Knowledge, d.Jobs, d.Usage, d.Notifier, d.Dispatch,
			ai_processing.WithRequestTimeout(d.AIRequestTimeout)),
		outgoing_message.New(d.Log, d.Messages, d.WhatsApp, d.Jobs, d.Notifier),
		whatsapp_cloud_send.New(d.Log, d.Messages, d.Cloud, d.Usage, d.Metrics),
		whatsapp_qr_send.New(d.Log, d.Messages, d.QR, d.Usage, d.Metrics),
		webhook_delivery.New(d.Log, d.Webhooks, d.WebhookHTTP, d.Metrics),
	}
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}
