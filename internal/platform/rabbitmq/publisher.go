// Package rabbitmq mirrors pipeline events onto durable RabbitMQ queues.
package rabbitmq

import (
	"context"
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type Config struct {
	URL    string
	Queue  string
	Prefix string
	// SpecificEvents get a queue of their own, named <prefix>_<event>.
	SpecificEvents []string
}

type Publisher struct {
	log      *logger.Logger
	queue    string
	prefix   string
	specific map[string]bool

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func New(cfg Config, baseLog *logger.Logger) (*Publisher, error) {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("rabbitmq: missing url")
	}
	p := newPublisher(cfg, baseLog)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	p.conn = conn
	p.ch = ch
	p.log.Info("RabbitMQ connection established", "queue", p.queue, "prefix", p.prefix)
	return p, nil
}

func newPublisher(cfg Config, baseLog *logger.Logger) *Publisher {
	queue := strings.TrimSpace(cfg.Queue)
	if queue == "" {
		queue = "events"
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "hostbot"
	}
	specific := make(map[string]bool, len(cfg.SpecificEvents))
	for _, ev := range cfg.SpecificEvents {
		if ev = strings.TrimSpace(ev); ev != "" {
			specific[strings.ToLower(ev)] = true
		}
	}
	return &Publisher{
		log:      baseLog.With("component", "RabbitPublisher"),
		queue:    queue,
		prefix:   prefix,
		specific: specific,
		declared: map[string]bool{},
	}
}

// QueueName returns the queue an event is routed to.
func (p *Publisher) QueueName(event string) string {
	event = strings.ToLower(strings.TrimSpace(event))
	if p.specific[event] {
		return p.prefix + "_" + strings.NewReplacer(".", "_").Replace(event)
	}
	return p.prefix + "_" + p.queue
}

// Publish is a no-op on a nil Publisher.
func (p *Publisher) Publish(ctx context.Context, event string, body []byte) error {
	if p == nil {
		return nil
	}
	name := p.QueueName(event)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return fmt.Errorf("rabbitmq: channel closed")
	}
	if !p.declared[name] {
		if _, err := p.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("rabbitmq declare %s: %w", name, err)
		}
		p.declared[name] = true
	}
	err := p.ch.PublishWithContext(ctx, "", name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         event,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", name, err)
	}
	p.log.Debug("Published event", "queue", name, "event", event)
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
