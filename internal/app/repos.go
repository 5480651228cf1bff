package app

import (
	"gorm.io/gorm"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type Repos struct {
	Chatbot      repos.ChatbotRepo
	Conversation repos.ConversationRepo
	Message      repos.MessageRepo
	Subscription repos.SubscriptionRepo
	Usage        repos.UsageRepo
	WhatsApp     repos.WhatsAppRepo
	Webhook      repos.WebhookRepo
	JobRun       repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Chatbot:      repos.NewChatbotRepo(db, log),
		Conversation: repos.NewConversationRepo(db, log),
		Message:      repos.NewMessageRepo(db, log),
		Subscription: repos.NewSubscriptionRepo(db, log),
		Usage:        repos.NewUsageRepo(db, log),
		WhatsApp:     repos.NewWhatsAppRepo(db, log),
		Webhook:      repos.NewWebhookRepo(db, log),
		JobRun:       repos.NewJobRunRepo(db, log),
	}
}
