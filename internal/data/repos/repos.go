package repos

import (
	"gorm.io/gorm"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos/billing"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos/channels"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos/chat"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos/jobs"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos/webhooks"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type ChatbotRepo = chat.ChatbotRepo
type ConversationRepo = chat.ConversationRepo
type MessageRepo = chat.MessageRepo

type SubscriptionRepo = billing.SubscriptionRepo
type UsageRepo = billing.UsageRepo

type WhatsAppRepo = channels.WhatsAppRepo

type WebhookRepo = webhooks.WebhookRepo

type JobRunRepo = jobs.JobRunRepo
type QueueCounts = jobs.QueueCounts

func NewChatbotRepo(db *gorm.DB, baseLog *logger.Logger) ChatbotRepo {
	return chat.NewChatbotRepo(db, baseLog)
}
func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return chat.NewConversationRepo(db, baseLog)
}
func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return chat.NewMessageRepo(db, baseLog)
}

func NewSubscriptionRepo(db *gorm.DB, baseLog *logger.Logger) SubscriptionRepo {
	return billing.NewSubscriptionRepo(db, baseLog)
}
func NewUsageRepo(db *gorm.DB, baseLog *logger.Logger) UsageRepo {
	return billing.NewUsageRepo(db, baseLog)
}

func NewWhatsAppRepo(db *gorm.DB, baseLog *logger.Logger) WhatsAppRepo {
	return channels.NewWhatsAppRepo(db, baseLog)
}

func NewWebhookRepo(db *gorm.DB, baseLog *logger.Logger) WebhookRepo {
	return webhooks.NewWebhookRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
