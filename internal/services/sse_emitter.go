package services

import (
	"context"
	"time"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/realtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/realtime/bus"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage) error
}

type HubEmitter struct{ Hub *realtime.SSEHub }

func (e *HubEmitter) Emit(_ context.Context, msg realtime.SSEMessage) error {
	if e == nil || e.Hub == nil {
		return nil
	}
	e.Hub.Broadcast(msg)
	return nil
}

const publishTimeout = 2 * time.Second

// RedisEmitter publishes to the bus; every replica's forwarder rebroadcasts into its local hub.
type RedisEmitter struct{ Bus bus.Bus }

func (e *RedisEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) error {
	if e == nil || e.Bus == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return e.Bus.Publish(ctx, msg)
}

// NewEmitter picks the Redis bus when one is configured, else the in-process hub.
func NewEmitter(hub *realtime.SSEHub, b bus.Bus, log *logger.Logger) SSEEmitter {
	if b != nil {
		if log != nil {
			log.Info("Realtime delivery via redis bus")
		}
		return &RedisEmitter{Bus: b}
	}
	return &HubEmitter{Hub: hub}
}
