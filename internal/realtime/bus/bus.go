package bus

import (
	"context"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/realtime"
)

// Bus carries realtime messages between API replicas.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
