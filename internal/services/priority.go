package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

// Scheduling priorities; lower runs first.
const (
	PriorityPremium  = 1
	PriorityStandard = 3
	PriorityDefault  = 5
)

var (
	premiumPrice  = decimal.NewFromInt(100)
	standardPrice = decimal.NewFromInt(50)
)

const priorityCacheTTL = 5 * time.Minute

type PriorityResolver interface {
	// ResolvePriority never fails: a missing plan or a lookup error yields PriorityDefault.
	ResolvePriority(ctx context.Context, customerID uuid.UUID) int
}

type priorityResolver struct {
	subs  repos.SubscriptionRepo
	log   *logger.Logger
	cache *gocache.Cache
}

func NewPriorityResolver(subs repos.SubscriptionRepo, baseLog *logger.Logger) PriorityResolver {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &priorityResolver{
		subs:  subs,
		log:   baseLog.With("service", "PriorityResolver"),
		cache: gocache.New(priorityCacheTTL, 10*time.Minute),
	}
}

// PriorityForPrice maps a monthly plan price to a scheduling priority.
func PriorityForPrice(price decimal.Decimal) int {
	switch {
	case price.GreaterThanOrEqual(premiumPrice):
		return PriorityPremium
	case price.GreaterThanOrEqual(standardPrice):
		return PriorityStandard
	default:
		return PriorityDefault
	}
}

func (r *priorityResolver) ResolvePriority(ctx context.Context, customerID uuid.UUID) int {
	if customerID == uuid.Nil || r.subs == nil {
		return PriorityDefault
	}
	key := customerID.String()
	if v, ok := r.cache.Get(key); ok {
		if p, ok := v.(int); ok {
			return p
		}
	}
	sub, err := r.subs.GetActiveByCustomer(dbctx.Context{Ctx: ctx}, customerID)
	if err != nil {
		// Not cached so the next lookup retries.
		r.log.Warn("Subscription lookup failed; using default priority", "customer_id", customerID, "error", err)
		return PriorityDefault
	}
	priority := PriorityDefault
	if sub != nil && sub.Plan != nil {
		priority = PriorityForPrice(sub.Plan.Price)
	}
	r.cache.Set(key, priority, gocache.DefaultExpiration)
	return priority
}
