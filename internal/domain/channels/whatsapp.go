package channels

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WhatsAppCloudAccount holds Meta Graph API credentials for one chatbot.
type WhatsAppCloudAccount struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ChatbotID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"chatbot_id"`
	PhoneNumberID     string         `gorm:"column:phone_number_id;not null;uniqueIndex" json:"phone_number_id"`
	BusinessAccountID string         `gorm:"column:business_account_id" json:"business_account_id,omitempty"`
	AccessToken       string         `gorm:"column:access_token;type:text;not null" json:"-"`
	IsActive          bool           `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (WhatsAppCloudAccount) TableName() string { return "whatsapp_cloud_account" }

type QRSessionStatus string

const (
	QRSessionConnected    QRSessionStatus = "CONNECTED"
	QRSessionDisconnected QRSessionStatus = "DISCONNECTED"
	QRSessionPending      QRSessionStatus = "QR_PENDING"
)

// WhatsAppQRSession is a paired device session managed by the QR gateway.
type WhatsAppQRSession struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ChatbotID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"chatbot_id"`
	SessionID       string          `gorm:"column:session_id;not null;uniqueIndex" json:"session_id"`
	PhoneNumber     string          `gorm:"column:phone_number" json:"phone_number,omitempty"`
	Status          QRSessionStatus `gorm:"column:status;not null;default:'DISCONNECTED';index" json:"status"`
	LastConnectedAt *time.Time      `gorm:"column:last_connected_at" json:"last_connected_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

func (WhatsAppQRSession) TableName() string { return "whatsapp_qr_session" }
