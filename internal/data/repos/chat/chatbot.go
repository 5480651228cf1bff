package chat

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type ChatbotRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chatbot, error)
}

type chatbotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatbotRepo(db *gorm.DB, baseLog *logger.Logger) ChatbotRepo {
	return &chatbotRepo{db: db, log: baseLog.With("repo", "ChatbotRepo")}
}

func (r *chatbotRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chatbot, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var bot types.Chatbot
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&bot).Error; err != nil {
		return nil, err
	}
	if bot.ID == uuid.Nil {
		return nil, nil
	}
	return &bot, nil
}
