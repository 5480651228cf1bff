package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, msg *types.Message) (*types.Message, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Message, error)
	// ListRecent returns up to limit newest messages in chronological order.
	ListRecent(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*types.Message, error)
	// UpdateDelivery sets delivery_status and merges meta into the metadata bag.
	UpdateDelivery(dbc dbctx.Context, id uuid.UUID, status types.DeliveryStatus, meta map[string]any) error
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, msg *types.Message) (*types.Message, error) {
	if msg == nil {
		return nil, nil
	}
	if len(msg.Metadata) == 0 {
		msg.Metadata = types.EncodeMeta(nil)
	}
	if err := dbc.Conn(r.db).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *messageRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Message, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var msg types.Message
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&msg).Error; err != nil {
		return nil, err
	}
	if msg.ID == uuid.Nil {
		return nil, nil
	}
	return &msg, nil
}

func (r *messageRepo) ListRecent(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*types.Message, error) {
	var out []*types.Message
	if conversationID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if err := dbc.Conn(r.db).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *messageRepo) UpdateDelivery(dbc dbctx.Context, id uuid.UUID, status types.DeliveryStatus, meta map[string]any) error {
	if id == uuid.Nil {
		return nil
	}
	updates := map[string]interface{}{
		"delivery_status": status,
		"updated_at":      time.Now(),
	}
	if len(meta) > 0 {
		updates["metadata"] = gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", string(types.EncodeMeta(meta)))
	}
	return dbc.Conn(r.db).
		Model(&types.Message{}).
		Where("id = ?", id).
		Updates(updates).Error
}
