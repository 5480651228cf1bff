package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type SSEClient struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	done     chan struct{}
	once     sync.Once
	Logger   *logger.Logger
}
