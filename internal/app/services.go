package app

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/catalog"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/circuit"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/router"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/pipeline"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/pipeline/ai_processing"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/retention"
	jobruntime "github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/runtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/worker"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/realtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

type Services struct {
	Circuit  *circuit.Breaker
	AI       *router.Router
	Queue    *queue.Queue
	Ingress  services.Ingress
	Notifier services.DeliveryNotifier

	Registry *jobruntime.Registry
	Worker   *worker.Worker
	Sweeper  *retention.Sweeper
}

func wireServices(cfg Config, log *logger.Logger, metrics *observability.Metrics, r Repos, c Clients, hub *realtime.SSEHub) (Services, error) {
	log.Info("Wiring services...")

	breaker := circuit.New(circuit.Config{
		FailureThreshold: cfg.CircuitFailureThreshold,
		ResetTimeout:     cfg.CircuitResetTimeout,
		OnStateChange: func(provider string, from, to circuit.State) {
			metrics.ObserveCircuitTransition(provider, string(from), string(to))
		},
	}, log)

	cat, err := catalog.Load(cfg.ProviderCatalog)
	if err != nil {
		return Services{}, err
	}
	ai := router.New(breaker, log, router.BuildAdapters(cfg.Credentials(), cat, vendorHTTPClient(cfg.AIRequestTimeout)),
		router.WithMetrics(metrics),
		router.WithTracer(observability.Tracer()),
	)
	log.Info("AI providers registered", "providers", ai.Providers())

	jobs := queue.New(r.JobRun, log, metrics, cfg.QueueMaxAttempts)

	var mirror services.EventMirror
	if c.Mirror != nil {
		mirror = c.Mirror
	}
	notifier := services.NewDeliveryNotifier(services.NewEmitter(hub, c.Bus, log), log, metrics)
	dispatch := services.NewWebhookDispatcher(r.Webhook, jobs, mirror, log)

	var retriever ai_processing.Retriever
	if c.Knowledge != nil {
		retriever = c.Knowledge
	}

	registry := jobruntime.NewRegistry()
	if err := pipeline.RegisterAll(registry, pipeline.Deps{
		Log:           log,
		Metrics:       metrics,
		Chatbots:      r.Chatbot,
		Conversations: r.Conversation,
		Messages:      r.Message,
		WhatsApp:      r.WhatsApp,
		Webhooks:      r.Webhook,
		Jobs:          jobs,
		Priority:      services.NewPriorityResolver(r.Subscription, log),
		Usage:         services.NewUsageRecorder(r.Usage, log),
		Notifier:      notifier,
		Dispatch:      dispatch,
		AI:            ai,
		Knowledge:     retriever,
		Cloud:         c.WhatsAppCloud,
		QR:            c.WhatsAppQR,

		AIRequestTimeout: cfg.AIRequestTimeout,
	}); err != nil {
		return Services{}, fmt.Errorf("register pipeline: %w", err)
	}

	queues := make(map[string]worker.QueueConfig, len(cfg.QueueConcurrencyByName))
	for name, n := range cfg.QueueConcurrencyByName {
		if !slices.Contains(jobtypes.Queues, name) {
			log.Warn("Ignoring concurrency for unknown queue", "queue", name)
			continue
		}
		queues[name] = worker.QueueConfig{Concurrency: n}
	}
	w := worker.NewWorker(log, r.JobRun, registry, metrics, worker.Config{
		PollInterval:       cfg.QueuePollInterval,
		BackoffBase:        cfg.QueueBackoffBase,
		DefaultConcurrency: cfg.QueueConcurrency,
		DefaultRateLimit:   cfg.QueueRateLimit,
		Queues:             queues,
	})
	sweeper := retention.NewSweeper(r.JobRun, log, retention.Config{
		SucceededTTL: cfg.RetentionSucceeded,
		FailedTTL:    cfg.RetentionFailed,
		Schedule:     cfg.RetentionSchedule,
	})

	return Services{
		Circuit:  breaker,
		AI:       ai,
		Queue:    jobs,
		Ingress:  services.NewIngress(r.Chatbot, r.WhatsApp, jobs, log),
		Notifier: notifier,
		Registry: registry,
		Worker:   w,
		Sweeper:  sweeper,
	}, nil
}

// vendorHTTPClient caps the wait for response headers only, so long streamed
// replies are not cut off mid-body.
func vendorHTTPClient(headerTimeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if headerTimeout > 0 {
		t.ResponseHeaderTimeout = headerTimeout
	}
	return &http.Client{Transport: t}
}
