package domain

import (
	"gorm.io/datatypes"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain/billing"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain/channels"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain/chat"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain/jobs"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain/webhooks"
)

type Chatbot = chat.Chatbot
type Conversation = chat.Conversation
type Message = chat.Message
type Channel = chat.Channel
type ConversationStatus = chat.ConversationStatus
type Role = chat.Role
type DeliveryStatus = chat.DeliveryStatus

const (
	ChannelWidget        = chat.ChannelWidget
	ChannelWhatsAppCloud = chat.ChannelWhatsAppCloud
	ChannelWhatsAppQR    = chat.ChannelWhatsAppQR

	ConversationActive     = chat.ConversationActive
	ConversationHumanAgent = chat.ConversationHumanAgent
	ConversationClosed     = chat.ConversationClosed

	RoleUser      = chat.RoleUser
	RoleAssistant = chat.RoleAssistant

	DeliveryPending   = chat.DeliveryPending
	DeliverySent      = chat.DeliverySent
	DeliveryDelivered = chat.DeliveryDelivered
	DeliveryFailed    = chat.DeliveryFailed
)

const (
	MetaAIProvider       = chat.MetaAIProvider
	MetaAIModel          = chat.MetaAIModel
	MetaTokensUsed       = chat.MetaTokensUsed
	MetaFinishReason     = chat.MetaFinishReason
	MetaIsErrorMessage   = chat.MetaIsErrorMessage
	MetaError            = chat.MetaError
	MetaErrorKind        = chat.MetaErrorKind
	MetaChannelMessageID = chat.MetaChannelMessageID
	MetaAttempt          = chat.MetaAttempt
	MetaHumanAgent       = chat.MetaHumanAgent
)

func EncodeMeta(meta map[string]any) datatypes.JSON { return chat.EncodeMeta(meta) }

type Customer = billing.Customer
type Plan = billing.Plan
type Subscription = billing.Subscription
type SubscriptionStatus = billing.SubscriptionStatus
type UsageLog = billing.UsageLog
type UsageType = billing.UsageType

const (
	SubscriptionActive   = billing.SubscriptionActive
	SubscriptionCanceled = billing.SubscriptionCanceled
	SubscriptionPastDue  = billing.SubscriptionPastDue

	UsageMessage         = billing.UsageMessage
	UsageAIRequest       = billing.UsageAIRequest
	UsageWhatsAppMessage = billing.UsageWhatsAppMessage
)

type WhatsAppCloudAccount = channels.WhatsAppCloudAccount
type WhatsAppQRSession = channels.WhatsAppQRSession
type QRSessionStatus = channels.QRSessionStatus

const (
	QRSessionConnected    = channels.QRSessionConnected
	QRSessionDisconnected = channels.QRSessionDisconnected
	QRSessionPending      = channels.QRSessionPending
)

type Webhook = webhooks.Webhook
type WebhookEvent = webhooks.WebhookEvent
type WebhookEventStatus = webhooks.EventStatus

const (
	WebhookEventPending = webhooks.EventPending
	WebhookEventSent    = webhooks.EventSent
	WebhookEventFailed  = webhooks.EventFailed
)

type JobRun = jobs.JobRun

const (
	JobQueued    = jobs.StatusQueued
	JobRunning   = jobs.StatusRunning
	JobSucceeded = jobs.StatusSucceeded
	JobFailed    = jobs.StatusFailed
)

const (
	EventMessageReceived  = webhooks.EventMessageReceived
	EventMessageResponded = webhooks.EventMessageResponded
)
