package whatsapp_cloud_send

import (
	"context"
	"time"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

const sendTimeout = 10 * time.Second

// Sender is satisfied by *whatsappcloud.Client.
type Sender interface {
	SendText(ctx context.Context, phoneNumberID, accessToken, to, text string) (string, error)
}

type Pipeline struct {
	log      *logger.Logger
	messages repos.MessageRepo
	sender   Sender
	usage    services.UsageRecorder
	metrics  *observability.Metrics
}

func New(baseLog *logger.Logger, messages repos.MessageRepo, sender Sender, usage services.UsageRecorder, metrics *observability.Metrics) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Pipeline{
		log:      baseLog.With("job", jobtypes.QueueWhatsAppCloud),
		messages: messages,
		sender:   sender,
		usage:    usage,
		metrics:  metrics,
	}
}

func (p *Pipeline) Type() string { return jobtypes.QueueWhatsAppCloud }
