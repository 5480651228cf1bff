// Package jobtypes defines the queue names and the payload carried by each queue.
package jobtypes

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	QueueIncoming      = "incoming-messages"
	QueueAIProcessing  = "ai-processing"
	QueueOutgoing      = "outgoing-messages"
	QueueWhatsAppCloud = "whatsapp-cloud-send"
	QueueWhatsAppQR    = "whatsapp-qr-send"
	QueueWebhook       = "webhook-delivery"
)

// Queues lists every pipeline queue in stage order.
var Queues = []string{
	QueueIncoming,
	QueueAIProcessing,
	QueueOutgoing,
	QueueWhatsAppCloud,
	QueueWhatsAppQR,
	QueueWebhook,
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func v() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate runs struct tag validation on a payload.
func Validate(payload any) error {
	if err := v().Struct(payload); err != nil {
		return fmt.Errorf("invalid job payload: %w", err)
	}
	return nil
}

type IncomingMessageJob struct {
	// ConversationID is set when the caller already knows the conversation.
	ConversationID *uuid.UUID      `json:"conversationId,omitempty"`
	ChatbotID      uuid.UUID       `json:"chatbotId" validate:"required"`
	ExternalUserID string          `json:"externalUserId" validate:"required,max=255"`
	Content        string          `json:"content" validate:"required"`
	Channel        string          `json:"channel" validate:"required,oneof=WIDGET WHATSAPP_CLOUD WHATSAPP_QR"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	// RequestID correlates stage logs with the HTTP request that accepted the message.
	RequestID      string          `json:"requestId,omitempty"`
}

func (j *IncomingMessageJob) Validate() error { return Validate(j) }

type AIConfig struct {
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"maxTokens,omitempty" validate:"omitempty,gt=0"`
}

type AIProcessingJob struct {
	ConversationID  uuid.UUID  `json:"conversationId" validate:"required"`
	ChatbotID       uuid.UUID  `json:"chatbotId" validate:"required"`
	CustomerID      uuid.UUID  `json:"customerId"`
	MessageID       uuid.UUID  `json:"messageId" validate:"required"`
	Prompt          string     `json:"prompt" validate:"required"`
	Context         []string   `json:"context"`
	SystemPrompt    string     `json:"systemPrompt,omitempty"`
	AIProvider      string     `json:"aiProvider" validate:"required"`
	AIModel         string     `json:"aiModel" validate:"required"`
	AIConfig        AIConfig   `json:"aiConfig"`
	KnowledgeBaseID *uuid.UUID `json:"knowledgeBaseId,omitempty"`
	RequestID       string     `json:"requestId,omitempty"`
}

func (j *AIProcessingJob) Validate() error { return Validate(j) }

type OutgoingMessageJob struct {
	ConversationID uuid.UUID       `json:"conversationId" validate:"required"`
	MessageID      uuid.UUID       `json:"messageId" validate:"required"`
	ExternalUserID string          `json:"externalUserId" validate:"required"`
	Content        string          `json:"content" validate:"required"`
	Channel        string          `json:"channel" validate:"required,oneof=WIDGET WHATSAPP_CLOUD WHATSAPP_QR"`
	ChatbotID      uuid.UUID       `json:"chatbotId" validate:"required"`
	CustomerID     uuid.UUID       `json:"customerId"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

func (j *OutgoingMessageJob) Validate() error { return Validate(j) }

type WhatsAppCloudSendJob struct {
	PhoneNumberID  string    `json:"phoneNumberId" validate:"required"`
	AccessToken    string    `json:"accessToken" validate:"required"`
	To             string    `json:"to" validate:"required"`
	Message        string    `json:"message" validate:"required"`
	MessageID      uuid.UUID `json:"messageId" validate:"required"`
	ConversationID uuid.UUID `json:"conversationId" validate:"required"`
	CustomerID     uuid.UUID `json:"customerId"`
	ChatbotID      uuid.UUID `json:"chatbotId"`
}

func (j *WhatsAppCloudSendJob) Validate() error { return Validate(j) }

type WhatsAppQRSendJob struct {
	SessionID      string    `json:"sessionId" validate:"required"`
	To             string    `json:"to" validate:"required"`
	Message        string    `json:"message" validate:"required"`
	MessageID      uuid.UUID `json:"messageId" validate:"required"`
	ConversationID uuid.UUID `json:"conversationId" validate:"required"`
	CustomerID     uuid.UUID `json:"customerId"`
	ChatbotID      uuid.UUID `json:"chatbotId"`
}

func (j *WhatsAppQRSendJob) Validate() error { return Validate(j) }

type WebhookDeliveryJob struct {
	URL            string          `json:"url" validate:"required,url"`
	Event          string          `json:"event" validate:"required"`
	Payload        json.RawMessage `json:"payload" validate:"required"`
	WebhookEventID uuid.UUID       `json:"webhookEventId" validate:"required"`
	WebhookID      uuid.UUID       `json:"webhookId"`
}

func (j *WebhookDeliveryJob) Validate() error { return Validate(j) }
