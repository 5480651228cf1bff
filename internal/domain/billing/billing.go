package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Customer struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Email     string         `gorm:"column:email;uniqueIndex" json:"email"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Customer) TableName() string { return "customer" }

type Plan struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string          `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0" json:"price"`
	Currency    string          `gorm:"column:currency;not null;default:'USD'" json:"currency"`
	MaxMessages int             `gorm:"column:max_messages;not null;default:0" json:"max_messages"`
	CreatedAt   time.Time       `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Plan) TableName() string { return "plan" }

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
)

type Subscription struct {
	ID               uuid.UUID          `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CustomerID       uuid.UUID          `gorm:"type:uuid;not null;index" json:"customer_id"`
	PlanID           uuid.UUID          `gorm:"type:uuid;not null;index" json:"plan_id"`
	Plan             *Plan              `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status           SubscriptionStatus `gorm:"column:status;not null;index" json:"status"`
	CurrentPeriodEnd *time.Time         `gorm:"column:current_period_end" json:"current_period_end,omitempty"`
	CreatedAt        time.Time          `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"not null;default:now()" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscription" }

type UsageType string

const (
	UsageMessage         UsageType = "MESSAGE"
	UsageAIRequest       UsageType = "AI_REQUEST"
	UsageWhatsAppMessage UsageType = "WHATSAPP_MESSAGE"
)

// UsageLog is an append-only metering row.
type UsageLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CustomerID uuid.UUID      `gorm:"type:uuid;not null;index:idx_usage_customer_type,priority:1" json:"customer_id"`
	ChatbotID  *uuid.UUID     `gorm:"type:uuid;index" json:"chatbot_id,omitempty"`
	Type       UsageType      `gorm:"column:type;not null;index:idx_usage_customer_type,priority:2" json:"type"`
	Quantity   int            `gorm:"column:quantity;not null;default:1" json:"quantity"`
	Metadata   datatypes.JSON `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (UsageLog) TableName() string { return "usage_log" }
