package billing

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type SubscriptionRepo interface {
	// GetActiveByCustomer returns the newest ACTIVE subscription with its plan, or nil.
	GetActiveByCustomer(dbc dbctx.Context, customerID uuid.UUID) (*types.Subscription, error)
}

type subscriptionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubscriptionRepo(db *gorm.DB, baseLog *logger.Logger) SubscriptionRepo {
	return &subscriptionRepo{db: db, log: baseLog.With("repo", "SubscriptionRepo")}
}

func (r *subscriptionRepo) GetActiveByCustomer(dbc dbctx.Context, customerID uuid.UUID) (*types.Subscription, error) {
	if customerID == uuid.Nil {
		return nil, nil
	}
	var sub types.Subscription
	err := dbc.Conn(r.db).
		Preload("Plan").
		Where("customer_id = ? AND status = ?", customerID, types.SubscriptionActive).
		Order("created_at DESC").
		Limit(1).
		Find(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == uuid.Nil {
		return nil, nil
	}
	return &sub, nil
}
