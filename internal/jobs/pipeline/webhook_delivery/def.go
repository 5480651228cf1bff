package webhook_delivery

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

const DefaultTimeout = 10 * time.Second

const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderID        = "X-Webhook-Id"
	HeaderAttempt   = "X-Webhook-Attempt"
	HeaderSignature = "X-Webhook-Signature"
)

type Pipeline struct {
	log     *logger.Logger
	repo    repos.WebhookRepo
	http    *resty.Client
	metrics *observability.Metrics
}

// New builds the delivery stage. A nil httpClient uses resty's default transport.
func New(baseLog *logger.Logger, repo repos.WebhookRepo, httpClient *http.Client, metrics *observability.Metrics) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	var rc *resty.Client
	if httpClient != nil {
		rc = resty.NewWithClient(httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(DefaultTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "hostbot-webhooks/1.0")
	return &Pipeline{
		log:     baseLog.With("job", jobtypes.QueueWebhook),
		repo:    repo,
		http:    rc,
		metrics: metrics,
	}
}

func (p *Pipeline) Type() string { return jobtypes.QueueWebhook }
