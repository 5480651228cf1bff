package app

import (
	"context"

	"gorm.io/gorm"

	httpx "github.com/FelipeVegaEsparza/hostbot-sub000/internal/http"
	httpH "github.com/FelipeVegaEsparza/hostbot-sub000/internal/http/handlers"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/realtime"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Widget   *httpH.WidgetHandler
	WhatsApp *httpH.WhatsAppHandler
	AI       *httpH.AIHandler
	Admin    *httpH.AdminHandler
}

func wireHandlers(cfg Config, log *logger.Logger, db *gorm.DB, svc Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(pingDB(db)),
		Widget:   httpH.NewWidgetHandler(log, svc.Ingress, hub),
		WhatsApp: httpH.NewWhatsAppHandler(log, svc.Ingress, cfg.WhatsAppVerifyToken),
		AI:       httpH.NewAIHandler(log, svc.AI, svc.Circuit),
		Admin:    httpH.NewAdminHandler(log, svc.Circuit, svc.Queue.Counts),
	}
}

func wireServer(cfg Config, log *logger.Logger, metrics *observability.Metrics, h Handlers) *httpx.Server {
	return httpx.NewServer(":"+cfg.Port, httpx.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.CORSOrigins,
		AdminAPIKey:     cfg.AdminAPIKey,
		Tracing:         cfg.OtelEnabled,
		HealthHandler:   h.Health,
		WidgetHandler:   h.Widget,
		WhatsAppHandler: h.WhatsApp,
		AIHandler:       h.AI,
		AdminHandler:    h.Admin,
	})
}

func pingDB(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
