package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Channel string

const (
	ChannelWidget        Channel = "WIDGET"
	ChannelWhatsAppCloud Channel = "WHATSAPP_CLOUD"
	ChannelWhatsAppQR    Channel = "WHATSAPP_QR"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelWidget, ChannelWhatsAppCloud, ChannelWhatsAppQR:
		return true
	}
	return false
}

type ConversationStatus string

const (
	ConversationActive     ConversationStatus = "ACTIVE"
	ConversationHumanAgent ConversationStatus = "HUMAN_AGENT"
	ConversationClosed     ConversationStatus = "CLOSED"
)

// Conversation identifies one (chatbot, external user, channel) triple.
// At most one ACTIVE row per triple is enforced by idx_conversation_active_triple.
type Conversation struct {
	ID             uuid.UUID          `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ChatbotID      uuid.UUID          `gorm:"type:uuid;not null;index" json:"chatbot_id"`
	Chatbot        *Chatbot           `gorm:"foreignKey:ChatbotID" json:"chatbot,omitempty"`
	ExternalUserID string             `gorm:"column:external_user_id;not null;index" json:"external_user_id"`
	Channel        Channel            `gorm:"column:channel;not null;index" json:"channel"`
	Status         ConversationStatus `gorm:"column:status;not null;default:'ACTIVE';index" json:"status"`
	LastMessageAt  *time.Time         `gorm:"column:last_message_at;index" json:"last_message_at,omitempty"`
	Metadata       datatypes.JSON     `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt      time.Time          `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt      gorm.DeletedAt     `gorm:"index" json:"deleted_at,omitempty"`
}

func (Conversation) TableName() string { return "conversation" }
