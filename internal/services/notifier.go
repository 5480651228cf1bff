package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/realtime"
)

// DeliveryNotifier pushes a message to whoever is watching the conversation.
// Notify never fails the caller; no connected recipient is not an error.
type DeliveryNotifier interface {
	Notify(ctx context.Context, conversationID uuid.UUID, msg *types.Message)
}

// MessagePayload is the realtime view of a message.
type MessagePayload struct {
	ID             uuid.UUID            `json:"id"`
	ConversationID uuid.UUID            `json:"conversationId"`
	Role           types.Role           `json:"role"`
	Content        string               `json:"content"`
	DeliveryStatus types.DeliveryStatus `json:"deliveryStatus"`
	Metadata       map[string]any       `json:"metadata,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
}

type deliveryNotifier struct {
	emit    SSEEmitter
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewDeliveryNotifier(emit SSEEmitter, baseLog *logger.Logger, metrics *observability.Metrics) DeliveryNotifier {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &deliveryNotifier{
		emit:    emit,
		log:     baseLog.With("service", "DeliveryNotifier"),
		metrics: metrics,
	}
}

func (n *deliveryNotifier) Notify(ctx context.Context, conversationID uuid.UUID, msg *types.Message) {
	if n == nil || n.emit == nil || conversationID == uuid.Nil || msg == nil {
		return
	}
	err := n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.ConversationChannel(conversationID),
		Event:   realtime.SSEEventMessageCreated,
		Data: MessagePayload{
			ID:             msg.ID,
			ConversationID: conversationID,
			Role:           msg.Role,
			Content:        msg.Content,
			DeliveryStatus: msg.DeliveryStatus,
			Metadata:       msg.Meta(),
			CreatedAt:      msg.CreatedAt,
		},
	})
	if err != nil {
		n.metrics.IncNotification("error")
		n.log.Warn("Realtime notify failed", "conversation_id", conversationID, "message_id", msg.ID, "error", err)
		return
	}
	n.metrics.IncNotification("ok")
}

// Notify is safe to call on a nil notifier.
func Notify(ctx context.Context, n DeliveryNotifier, conversationID uuid.UUID, msg *types.Message) {
	if n == nil {
		return
	}
	n.Notify(ctx, conversationID, msg)
}
