package outgoing_message

import (
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

// Pipeline routes an assistant reply to the channel it must leave through. Widget replies
// are delivered here; WhatsApp replies are handed to the channel send queues.
type Pipeline struct {
	log *logger.Logger

	messages repos.MessageRepo
	whatsapp repos.WhatsAppRepo
	jobs     queue.Enqueuer
	notify   services.DeliveryNotifier
}

func New(
	baseLog *logger.Logger,
	messages repos.MessageRepo,
	whatsapp repos.WhatsAppRepo,
	jobs queue.Enqueuer,
	notify services.DeliveryNotifier,
) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Pipeline{
		log:      baseLog.With("job", jobtypes.QueueOutgoing),
		messages: messages,
		whatsapp: whatsapp,
		jobs:     jobs,
		notify:   notify,
	}
}

func (p *Pipeline) Type() string { return jobtypes.QueueOutgoing }
