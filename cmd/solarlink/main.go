package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/solarlink-crm/solarlink/internal/access"
	"github.com/solarlink-crm/solarlink/internal/app"
	"github.com/solarlink-crm/solarlink/internal/auth"
	"github.com/solarlink-crm/solarlink/internal/leads"
	"github.com/solarlink-crm/solarlink/internal/ledger"
	"github.com/solarlink-crm/solarlink/internal/notify"
	"github.com/solarlink-crm/solarlink/internal/observability"
	"github.com/solarlink-crm/solarlink/internal/platform/cache"
	"github.com/solarlink-crm/solarlink/internal/platform/db"
	"github.com/solarlink-crm/solarlink/internal/projects"
	"github.com/solarlink-crm/solarlink/internal/shared"
	"github.com/solarlink-crm/solarlink/internal/storage"
	"github.com/solarlink-crm/solarlink/internal/timeline"
	"github.com/solarlink-crm/solarlink/internal/users"
	"github.com/solarlink-crm/solarlink/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "solarlink_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()

	proofStore, err := storage.NewDiskStorage(cfg.ProofDir)
	if err != nil {
		logger.Error("init proof storage", slog.Any("error", err))
		os.Exit(1)
	}

	bus := notify.NewBus()
	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	bus.Subscribe(jobs.NewAsynqSink(queueClient, logger))

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	authRepo := auth.NewRepository(pool, usersRepo)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	timelineRepo := timeline.NewRepository(pool)
	timelineService := timeline.NewService(timelineRepo)

	projectsRepo := projects.NewRepository(pool)
	engine := projects.NewEngine(logger, projectsRepo, bus, cfg.DraftWindow)
	engine.SetObserver(metrics)
	engine.SetOpsDirectory(usersService)
	projectsHandler := projects.NewHandler(logger, engine, timelineService)

	leadsRepo := leads.NewRepository(pool)
	leadsService := leads.NewService(logger, leadsRepo, engine)
	leadsHandler := leads.NewHandler(logger, leadsService)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(logger, ledgerRepo, engine, proofStore, bus)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	accessMW := access.Middleware{Source: usersService, Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		LeadsHandler:     leadsHandler,
		ProjectsHandler:  projectsHandler,
		LedgerHandler:    ledgerHandler,
		AccessMiddleware: accessMW,
		Metrics:          metrics,
	})

	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
