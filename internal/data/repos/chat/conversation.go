package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type ConversationRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error)
	FindActive(dbc dbctx.Context, chatbotID uuid.UUID, externalUserID string, channel types.Channel) (*types.Conversation, error)
	// FindOrCreateActive returns the open conversation for the triple, creating it when absent.
	// The bool reports whether this call created the row.
	FindOrCreateActive(dbc dbctx.Context, chatbotID uuid.UUID, externalUserID string, channel types.Channel) (*types.Conversation, bool, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	TouchLastMessage(dbc dbctx.Context, id uuid.UUID, at time.Time) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: baseLog.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var conv types.Conversation
	err := dbc.Conn(r.db).
		Preload("Chatbot").
		Where("id = ?", id).
		Limit(1).
		Find(&conv).Error
	if err != nil {
		return nil, err
	}
	if conv.ID == uuid.Nil {
		return nil, nil
	}
	return &conv, nil
}

// FindActive treats HUMAN_AGENT as open: an operator takeover keeps the same conversation.
func (r *conversationRepo) FindActive(dbc dbctx.Context, chatbotID uuid.UUID, externalUserID string, channel types.Channel) (*types.Conversation, error) {
	var conv types.Conversation
	err := dbc.Conn(r.db).
		Preload("Chatbot").
		Where("chatbot_id = ? AND external_user_id = ? AND channel = ? AND status IN ?",
			chatbotID, externalUserID, channel,
			[]types.ConversationStatus{types.ConversationActive, types.ConversationHumanAgent}).
		Order("created_at DESC").
		Limit(1).
		Find(&conv).Error
	if err != nil {
		return nil, err
	}
	if conv.ID == uuid.Nil {
		return nil, nil
	}
	return &conv, nil
}

func (r *conversationRepo) FindOrCreateActive(dbc dbctx.Context, chatbotID uuid.UUID, externalUserID string, channel types.Channel) (*types.Conversation, bool, error) {
	existing, err := r.FindActive(dbc, chatbotID, externalUserID, channel)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := time.Now()
	conv := &types.Conversation{
		ChatbotID:      chatbotID,
		ExternalUserID: externalUserID,
		Channel:        channel,
		Status:         types.ConversationActive,
		LastMessageAt:  &now,
	}
	if err := dbc.Conn(r.db).Create(conv).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, false, err
		}
		// A concurrent first contact won the insert.
		r.log.Debug("Conversation create raced, re-reading", "chatbot_id", chatbotID, "channel", channel)
		winner, rerr := r.FindActive(dbc, chatbotID, externalUserID, channel)
		if rerr != nil {
			return nil, false, rerr
		}
		if winner == nil {
			return nil, false, err
		}
		return winner, false, nil
	}
	created, err := r.GetByID(dbc, conv.ID)
	if err != nil {
		return nil, false, err
	}
	if created == nil {
		created = conv
	}
	return created, true, nil
}

func (r *conversationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.Conn(r.db).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *conversationRepo) TouchLastMessage(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{"last_message_at": at})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
