package channels

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type WhatsAppRepo interface {
	GetActiveCloudAccount(dbc dbctx.Context, chatbotID uuid.UUID) (*types.WhatsAppCloudAccount, error)
	GetCloudAccountByPhoneNumberID(dbc dbctx.Context, phoneNumberID string) (*types.WhatsAppCloudAccount, error)
	GetQRSessionByChatbot(dbc dbctx.Context, chatbotID uuid.UUID) (*types.WhatsAppQRSession, error)
	GetQRSessionBySessionID(dbc dbctx.Context, sessionID string) (*types.WhatsAppQRSession, error)
}

type whatsAppRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWhatsAppRepo(db *gorm.DB, baseLog *logger.Logger) WhatsAppRepo {
	return &whatsAppRepo{db: db, log: baseLog.With("repo", "WhatsAppRepo")}
}

func (r *whatsAppRepo) GetActiveCloudAccount(dbc dbctx.Context, chatbotID uuid.UUID) (*types.WhatsAppCloudAccount, error) {
	var acct types.WhatsAppCloudAccount
	err := dbc.Conn(r.db).
		Where("chatbot_id = ? AND is_active = ?", chatbotID, true).
		Order("updated_at DESC").
		Limit(1).
		Find(&acct).Error
	if err != nil {
		return nil, err
	}
	if acct.ID == uuid.Nil {
		return nil, nil
	}
	return &acct, nil
}

func (r *whatsAppRepo) GetCloudAccountByPhoneNumberID(dbc dbctx.Context, phoneNumberID string) (*types.WhatsAppCloudAccount, error) {
	if phoneNumberID == "" {
		return nil, nil
	}
	var acct types.WhatsAppCloudAccount
	if err := dbc.Conn(r.db).Where("phone_number_id = ?", phoneNumberID).Limit(1).Find(&acct).Error; err != nil {
		return nil, err
	}
	if acct.ID == uuid.Nil {
		return nil, nil
	}
	return &acct, nil
}

func (r *whatsAppRepo) GetQRSessionByChatbot(dbc dbctx.Context, chatbotID uuid.UUID) (*types.WhatsAppQRSession, error) {
	var sess types.WhatsAppQRSession
	err := dbc.Conn(r.db).
		Where("chatbot_id = ?", chatbotID).
		Order("updated_at DESC").
		Limit(1).
		Find(&sess).Error
	if err != nil {
		return nil, err
	}
	if sess.ID == uuid.Nil {
		return nil, nil
	}
	return &sess, nil
}

func (r *whatsAppRepo) GetQRSessionBySessionID(dbc dbctx.Context, sessionID string) (*types.WhatsAppQRSession, error) {
	if sessionID == "" {
		return nil, nil
	}
	var sess types.WhatsAppQRSession
	if err := dbc.Conn(r.db).Where("session_id = ?", sessionID).Limit(1).Find(&sess).Error; err != nil {
		return nil, err
	}
	if sess.ID == uuid.Nil {
		return nil, nil
	}
	return &sess, nil
}
