package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Customer{},
		&types.Plan{},
		&types.Subscription{},
		&types.UsageLog{},

		&types.Chatbot{},
		&types.Conversation{},
		&types.Message{},

		&types.WhatsAppCloudAccount{},
		&types.WhatsAppQRSession{},

		&types.Webhook{},
		&types.WebhookEvent{},

		&types.JobRun{},
	)
}

// EnsureConversationIndexes creates the partial unique index that keeps a single ACTIVE
// conversation per (chatbot, external user, channel).
func EnsureConversationIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversation_active_triple
		ON conversation(chatbot_id, external_user_id, channel)
		WHERE deleted_at IS NULL AND status = 'ACTIVE';
	`).Error; err != nil {
		return fmt.Errorf("create idx_conversation_active_triple: %w", err)
	}
	return nil
}

func EnsureQueueIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_run_runnable
		ON job_run(queue, priority, created_at)
		WHERE status = 'queued';
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_runnable: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_gin ON webhook USING gin (events);`).Error; err != nil {
		return fmt.Errorf("create idx_webhook_events_gin: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureConversationIndexes(s.db); err != nil {
		s.log.Error("Conversation index migration failed", "error", err)
		return err
	}
	if err := EnsureQueueIndexes(s.db); err != nil {
		s.log.Error("Queue index migration failed", "error", err)
		return err
	}
	return nil
}
