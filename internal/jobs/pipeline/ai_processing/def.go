package ai_processing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

const (
	// KnowledgeTopK is how many snippets are requested from an attached knowledge base.
	KnowledgeTopK = 5
	// DefaultRequestTimeout bounds one vendor call.
	DefaultRequestTimeout = 60 * time.Second
)

// Generator is satisfied by *router.Router.
type Generator interface {
	GenerateResponse(ctx context.Context, provider string, p engine.Params) (*engine.Response, error)
}

// Retriever is satisfied by *knowledge.Client.
type Retriever interface {
	Search(ctx context.Context, knowledgeBaseID uuid.UUID, query string, topK int) ([]string, error)
}

type Pipeline struct {
	log *logger.Logger

	conversations repos.ConversationRepo
	messages      repos.MessageRepo

	ai        Generator
	knowledge Retriever

	jobs     queue.Enqueuer
	usage    services.UsageRecorder
	notify   services.DeliveryNotifier
	webhooks services.WebhookDispatcher

	requestTimeout time.Duration
}

type Option func(*Pipeline)

// WithRequestTimeout overrides DefaultRequestTimeout. Non-positive values are ignored.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.requestTimeout = d
		}
	}
}

func New(
	baseLog *logger.Logger,
	conversations repos.ConversationRepo,
	messages repos.MessageRepo,
	ai Generator,
	knowledge Retriever,
	jobs queue.Enqueuer,
	usage services.UsageRecorder,
	notify services.DeliveryNotifier,
	webhooks services.WebhookDispatcher,
	opts ...Option,
) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	p := &Pipeline{
		log:           baseLog.With("job", jobtypes.QueueAIProcessing),
		conversations: conversations,
		messages:      messages,
		ai:            ai,
		knowledge:     knowledge,
		jobs:          jobs,
		usage:         usage,
		notify:        notify,
		webhooks:      webhooks,

		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Type() string { return jobtypes.QueueAIProcessing }
