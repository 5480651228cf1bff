package app

import (
	"fmt"
	"strings"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/channels/whatsappcloud"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/channels/whatsappqr"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/knowledge"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/platform/rabbitmq"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/realtime/bus"
)

type Clients struct {
	// Bus and Mirror are nil when their backing service is not configured.
	Bus           bus.Bus
	Mirror        *rabbitmq.Publisher
	WhatsAppCloud *whatsappcloud.Client
	WhatsAppQR    *whatsappqr.Client
	Knowledge     *knowledge.Client
}

func wireClients(cfg Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		b, err := bus.NewRedisBus(bus.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		}, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis realtime bus: %w", err)
		}
		out.Bus = b
	}

	// RabbitMQ
	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		p, err := rabbitmq.New(rabbitmq.Config{
			URL:            cfg.RabbitMQURL,
			Queue:          cfg.RabbitMQQueue,
			Prefix:         cfg.RabbitMQPrefix,
			SpecificEvents: cfg.RabbitMQSpecificEvents,
		}, log)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init rabbitmq mirror: %w", err)
		}
		out.Mirror = p
	}

	// Channels
	out.WhatsAppCloud = whatsappcloud.New(whatsappcloud.Config{
		BaseURL:    cfg.WhatsAppCloudBaseURL,
		APIVersion: cfg.WhatsAppCloudAPIVersion,
	})
	out.WhatsAppQR = whatsappqr.New(whatsappqr.Config{
		BaseURL: cfg.WhatsAppQRBaseURL,
		APIKey:  cfg.WhatsAppQRAPIKey,
	})
	if strings.TrimSpace(cfg.WhatsAppQRBaseURL) == "" {
		log.Warn("WHATSAPP_QR_BASE_URL not set; QR channel sends will fail")
	}

	// Knowledge
	if strings.TrimSpace(cfg.KnowledgeBaseURL) != "" {
		out.Knowledge = knowledge.New(knowledge.Config{
			BaseURL: cfg.KnowledgeBaseURL,
			APIKey:  cfg.KnowledgeAPIKey,
		})
	}
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Mirror != nil {
		_ = c.Mirror.Close()
	}
}
