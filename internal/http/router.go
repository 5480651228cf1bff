package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/FelipeVegaEsparza/hostbot-sub000/internal/http/handlers"
	httpMW "github.com/FelipeVegaEsparza/hostbot-sub000/internal/http/middleware"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

const serviceName = "hostbot-api"

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	CORSOrigins []string
	AdminAPIKey string
	Tracing     bool

	HealthHandler   *httpH.HealthHandler
	WidgetHandler   *httpH.WidgetHandler
	WhatsAppHandler *httpH.WhatsAppHandler
	AIHandler       *httpH.AIHandler
	AdminHandler    *httpH.AdminHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")

	// Widget
	if cfg.WidgetHandler != nil {
		api.POST("/widget/chatbots/:chatbotId/messages", cfg.WidgetHandler.PostMessage)
		api.GET("/widget/conversations/:id/stream", cfg.WidgetHandler.Stream)
	}

	// Channel webhooks
	if cfg.WhatsAppHandler != nil {
		api.GET("/webhooks/whatsapp/cloud", cfg.WhatsAppHandler.VerifyCloud)
		api.POST("/webhooks/whatsapp/cloud", cfg.WhatsAppHandler.ReceiveCloud)
		api.POST("/webhooks/whatsapp/qr", cfg.WhatsAppHandler.ReceiveQR)
	}

	// AI
	if cfg.AIHandler != nil {
		api.POST("/ai/generate", cfg.AIHandler.Generate)
	}

	// Admin
	if cfg.AdminHandler != nil {
		admin := api.Group("/admin")
		admin.Use(httpMW.RequireAdminKey(cfg.AdminAPIKey))
		admin.GET("/circuits", cfg.AdminHandler.ListCircuits)
		admin.GET("/circuits/:provider", cfg.AdminHandler.GetCircuit)
		admin.POST("/circuits/:provider/reset", cfg.AdminHandler.ResetCircuit)
		admin.GET("/queues", cfg.AdminHandler.QueueStats)
	}

	return r
}
