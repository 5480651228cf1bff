package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type UsageRepo interface {
	Create(dbc dbctx.Context, entry *types.UsageLog) error
	SumSince(dbc dbctx.Context, customerID uuid.UUID, usageType types.UsageType, since time.Time) (int64, error)
}

type usageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageRepo(db *gorm.DB, baseLog *logger.Logger) UsageRepo {
	return &usageRepo{db: db, log: baseLog.With("repo", "UsageRepo")}
}

func (r *usageRepo) Create(dbc dbctx.Context, entry *types.UsageLog) error {
	if entry == nil {
		return nil
	}
	if len(entry.Metadata) == 0 {
		entry.Metadata = types.EncodeMeta(nil)
	}
	return dbc.Conn(r.db).Create(entry).Error
}

func (r *usageRepo) SumSince(dbc dbctx.Context, customerID uuid.UUID, usageType types.UsageType, since time.Time) (int64, error) {
	var total int64
	err := dbc.Conn(r.db).
		Model(&types.UsageLog{}).
		Where("customer_id = ? AND type = ? AND created_at >= ?", customerID, usageType, since).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}
