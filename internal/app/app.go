package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	db "github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/db"
	httpx "github.com/FelipeVegaEsparza/hostbot-sub000/internal/http"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Metrics  *observability.Metrics
	Repos    Repos
	Clients  Clients
	Services Services
	SSEHub   *realtime.SSEHub
	Server   *httpx.Server

	pg           *db.PostgresService
	shutdownOTel  func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Info("Configuration loaded", "role", cfg.Role, "port", cfg.Port)

	shutdownOTel := observability.InitOTel(ctx, log, cfg.Otel())
	metrics := observability.Init(log, cfg.MetricsEnabled)

	pg, err := db.NewPostgresService(cfg.Postgres(), log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	hub := realtime.NewSSEHub(log)
	reposet := wireRepos(theDB, log)

	clients, err := wireClients(cfg, log)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(cfg, log, metrics, reposet, clients, hub)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Metrics:      metrics,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		SSEHub:       hub,
		pg:           pg,
		shutdownOTel: shutdownOTel,
	}
	if cfg.RunsAPI() {
		a.Server = wireServer(cfg, log, metrics, wireHandlers(cfg, log, theDB, serviceset, hub))
	}
	return a, nil
}

// Run blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	if a.Clients.Bus != nil && a.Cfg.RunsAPI() {
		if err := a.Clients.Bus.StartForwarder(gctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start realtime forwarder: %w", err)
		}
	}
	if a.Server != nil {
		g.Go(func() error { return a.Server.Run(gctx) })
	}
	if a.Cfg.RunsWorker() {
		g.Go(func() error { return a.Services.Worker.Run(gctx) })
		g.Go(func() error { return a.Services.Sweeper.Run(gctx) })
	}
	if a.Metrics != nil {
		a.Metrics.StartJobQueueCollector(gctx, a.Log, a.Services.Queue.Counts, jobtypes.Queues, a.Cfg.QueueDepthInterval)
	}
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.shutdownOTel != nil {
		if err := a.shutdownOTel(context.Background()); err != nil {
			a.Log.Warn("OpenTelemetry shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
