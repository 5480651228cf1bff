package webhooks

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventMessageReceived  = "message.received"
	EventMessageResponded = "message.responded"
)

// Webhook is a customer configured callback URL subscribed to a set of events.
type Webhook struct {
	ID        uuid.UUID                   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ChatbotID uuid.UUID                   `gorm:"type:uuid;not null;index" json:"chatbot_id"`
	URL       string                      `gorm:"column:url;not null" json:"url"`
	Events    datatypes.JSONSlice[string] `gorm:"column:events;type:jsonb;not null;default:'[]'" json:"events"`
	Secret    string                      `gorm:"column:secret" json:"-"`
	IsActive  bool                        `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	CreatedAt time.Time                   `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt              `gorm:"index" json:"deleted_at,omitempty"`
}

func (Webhook) TableName() string { return "webhook" }

type EventStatus string

const (
	EventPending EventStatus = "PENDING"
	EventSent    EventStatus = "SENT"
	EventFailed  EventStatus = "FAILED"
)

// WebhookEvent tracks delivery of one event to one webhook.
type WebhookEvent struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	WebhookID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"webhook_id"`
	Event          string         `gorm:"column:event;not null;index" json:"event"`
	Payload        datatypes.JSON `gorm:"type:jsonb;column:payload;not null;default:'{}'" json:"payload"`
	Status         EventStatus    `gorm:"column:status;not null;default:'PENDING';index" json:"status"`
	Attempts       int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	ResponseStatus int            `gorm:"column:response_status" json:"response_status,omitempty"`
	LastError      string         `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	DeliveredAt    *time.Time     `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (WebhookEvent) TableName() string { return "webhook_event" }
