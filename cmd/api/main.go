package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/ai"
	httptransport "github.com/spec-kit/helpdesk-triage/internal/api/http"
	"github.com/spec-kit/helpdesk-triage/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-triage/internal/auth"
	"github.com/spec-kit/helpdesk-triage/internal/config"
	"github.com/spec-kit/helpdesk-triage/internal/mailer"
	"github.com/spec-kit/helpdesk-triage/internal/observability"
	"github.com/spec-kit/helpdesk-triage/internal/persistence"
	"github.com/spec-kit/helpdesk-triage/internal/queue"
	"github.com/spec-kit/helpdesk-triage/internal/repository"
	"github.com/spec-kit/helpdesk-triage/internal/service"
	"github.com/spec-kit/helpdesk-triage/internal/triage"
	"github.com/spec-kit/helpdesk-triage/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	runRepo := repository.NewTriageRunRepository(pool, logger)

	eventQueue := queue.New(redis.Client(), cfg.Triage.QueueKey)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo)

	smtpMailer := mailer.NewSMTPMailer(cfg.SMTP, logger)
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Mailer:        smtpMailer,
		Metrics:       metrics,
		Logger:        logger,
		ReplyNotifyTo: cfg.SMTP.ReplyNotifyTo,
	})

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		Publisher:  eventQueue,
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    ticketRepo,
		Publisher:     eventQueue,
		Notifications: notifications,
		Logger:        logger,
	})

	gemini := ai.NewGeminiClient(cfg.Gemini)
	classifier := triage.NewClassifier(gemini, cfg.Gemini.Timeout())
	selector := triage.NewSelector(userRepo)

	pipeline := triage.NewPipeline(triage.PipelineDependencies{
		Tickets:    ticketRepo,
		Classifier: classifier,
		Selector:   selector,
		Notifier:   notifications,
		Recorder:   runRepo,
		Metrics:    metrics,
		Logger:     logger,
		Retries:    cfg.Triage.StepRetries,
		Backoff:    cfg.Triage.StepBackoff(),
	})

	triageWorker := worker.New(worker.Dependencies{
		Queue:         eventQueue,
		Pipeline:      pipeline,
		UserRepo:      userRepo,
		Notifications: notifications,
		Metrics:       metrics,
		Logger:        logger,
		Concurrency:   cfg.Triage.WorkerConcurrency,
		Retries:       cfg.Triage.StepRetries,
		Backoff:       cfg.Triage.StepBackoff(),
	})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		triageWorker.Run(ctx)
	}()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(pg, redis, metrics, cfg.App.Version),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Admin:          handlers.NewAdminHandler(authService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	<-workerDone
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
