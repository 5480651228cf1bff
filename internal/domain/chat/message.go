package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliverySent      DeliveryStatus = "SENT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// Metadata keys written by the pipeline stages.
const (
	MetaAIProvider       = "aiProvider"
	MetaAIModel          = "aiModel"
	MetaTokensUsed       = "tokensUsed"
	MetaFinishReason     = "finishReason"
	MetaIsErrorMessage   = "isErrorMessage"
	MetaError            = "error"
	MetaErrorKind        = "errorKind"
	MetaChannelMessageID = "channelMessageId"
	MetaAttempt          = "attempt"
	MetaHumanAgent       = "humanAgent"
)

type Message struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;index:idx_message_conversation_created,priority:1" json:"conversation_id"`
	Content        string         `gorm:"column:content;type:text;not null" json:"content"`
	Role           Role           `gorm:"column:role;not null;index" json:"role"`
	DeliveryStatus DeliveryStatus `gorm:"column:delivery_status;not null;default:'PENDING';index" json:"delivery_status"`
	Metadata       datatypes.JSON `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now();index:idx_message_conversation_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Message) TableName() string { return "message" }

// Meta decodes Metadata. A malformed bag decodes as empty.
func (m *Message) Meta() map[string]any {
	out := map[string]any{}
	if m == nil || len(m.Metadata) == 0 {
		return out
	}
	_ = json.Unmarshal(m.Metadata, &out)
	return out
}

// EncodeMeta marshals a metadata bag, falling back to an empty object.
func EncodeMeta(meta map[string]any) datatypes.JSON {
	if len(meta) == 0 {
		return datatypes.JSON(`{}`)
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return datatypes.JSON(`{}`)
	}
	return datatypes.JSON(b)
}
