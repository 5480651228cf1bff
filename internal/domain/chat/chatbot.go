package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Chatbot struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CustomerID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"customer_id"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	AIProvider      string         `gorm:"column:ai_provider;not null;default:'openai'" json:"ai_provider"`
	AIModel         string         `gorm:"column:ai_model;not null;default:'gpt-4o-mini'" json:"ai_model"`
	SystemPrompt    string         `gorm:"column:system_prompt;type:text" json:"system_prompt,omitempty"`
	Temperature     *float64       `gorm:"column:temperature" json:"temperature,omitempty"`
	MaxTokens       *int           `gorm:"column:max_tokens" json:"max_tokens,omitempty"`
	KnowledgeBaseID *uuid.UUID     `gorm:"type:uuid;column:knowledge_base_id;index" json:"knowledge_base_id,omitempty"`
	IsActive        bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Chatbot) TableName() string { return "chatbot" }
