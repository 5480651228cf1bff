package realtime

import (
	"strings"

	"github.com/google/uuid"
)

type SSEEvent string

const (
	SSEEventMessageCreated SSEEvent = "MessageCreated"
	SSEEventMessageStatus  SSEEvent = "MessageStatus"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

const conversationPrefix = "conversation:"

// ConversationChannel is the room a widget joins to follow one conversation.
func ConversationChannel(conversationID uuid.UUID) string {
	return conversationPrefix + conversationID.String()
}

// ParseConversationChannel is the inverse of ConversationChannel.
func ParseConversationChannel(channel string) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(channel), conversationPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
