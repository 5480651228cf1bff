package incoming_message

import (
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

// ContextWindow is how many recent messages feed the AI job.
const ContextWindow = 10

type Pipeline struct {
	log *logger.Logger

	chatbots      repos.ChatbotRepo
	conversations repos.ConversationRepo
	messages      repos.MessageRepo

	jobs     queue.Enqueuer
	priority services.PriorityResolver
	usage    services.UsageRecorder
	notify   services.DeliveryNotifier
	webhooks services.WebhookDispatcher
}

func New(
	baseLog *logger.Logger,
	chatbots repos.ChatbotRepo,
	conversations repos.ConversationRepo,
	messages repos.MessageRepo,
	jobs queue.Enqueuer,
	priority services.PriorityResolver,
	usage services.UsageRecorder,
	notify services.DeliveryNotifier,
	webhooks services.WebhookDispatcher,
) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Pipeline{
		log:           baseLog.With("job", jobtypes.QueueIncoming),
		chatbots:      chatbots,
		conversations: conversations,
		messages:      messages,
		jobs:          jobs,
		priority:      priority,
		usage:         usage,
		notify:        notify,
		webhooks:      webhooks,
	}
}

func (p *Pipeline) Type() string { return jobtypes.QueueIncoming }
