package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailboard/internal/classifier"
	"mailboard/internal/config"
	"mailboard/internal/db"
	"mailboard/internal/gmail"
	"mailboard/internal/handler"
	"mailboard/internal/httpserver"
	"mailboard/internal/redis"
	"mailboard/internal/repository"
	"mailboard/internal/service"
	"mailboard/internal/util"
	"mailboard/pkg/logger"
	"mailboard/pkg/mq"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	// 2. Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}

	// 3. Init Redis (import gate)
	rdb := redis.NewClient(cfg.Redis)
	gate := util.NewImportGate(rdb, 10*time.Minute)

	// 4. Init RabbitMQ publisher. Events are best-effort; a broker
	// outage must not block the API.
	var publisher *mq.Publisher
	if cfg.MQ.URL != "" {
		publisher, err = mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Warn("event publisher unavailable", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	// 5. Init repositories
	userRepo := repository.NewUserRepository(dbConn)
	emailRepo := repository.NewEmailRepository(dbConn)
	taskRepo := repository.NewTaskRepository(dbConn)
	runRepo := repository.NewImportRunRepository(dbConn)
	commentRepo := repository.NewCommentRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// 6. Init classifier and mailbox client factory
	cls := classifier.NewOpenAIClassifier(
		cfg.AI.APIKey,
		cfg.AI.Model,
		cfg.AI.MaxTokens,
		cfg.AI.Temperature,
		time.Duration(cfg.Import.ClassifyDelayMs)*time.Millisecond,
		log,
	)
	newClient := func(ctx context.Context, token string) (gmail.Client, error) {
		return gmail.NewGoogleClient(ctx, token)
	}

	// 7. Init services
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret)
	importService := service.NewImportService(
		userRepo, emailRepo, taskRepo, runRepo,
		gate, eventPublisher(publisher), cls, newClient,
		service.ImportOptions{
			MaxEmails:       cfg.Import.MaxEmails,
			CooldownMinutes: cfg.Import.CooldownMinutes,
			ClassifyDelayMs: cfg.Import.ClassifyDelayMs,
		},
		log,
	)
	gmailConfigService := service.NewGmailConfigService(userRepo, newClient, log)
	analyticsService := service.NewAnalyticsService(emailRepo, taskRepo)

	// 8. Init handlers
	authHandler := handler.NewAuthHandler(authService)
	importHandler := handler.NewImportHandler(importService, log)
	gmailConfigHandler := handler.NewGmailConfigHandler(gmailConfigService, log)
	emailHandler := handler.NewEmailHandler(emailRepo, log)
	taskHandler := handler.NewTaskHandler(taskRepo, log)
	commentHandler := handler.NewCommentHandler(commentRepo)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, log)

	// 9. Init router
	router := httpserver.NewRouter(
		authHandler, importHandler, gmailConfigHandler,
		emailHandler, taskHandler, commentHandler, notificationHandler, analyticsHandler,
		cfg.JWT.Secret, dbConn,
	)

	// 10. Run server
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatal("server start failed", zap.Error(err))
	}
}

// eventPublisher keeps a typed nil from reaching the service when the
// broker is down.
func eventPublisher(p *mq.Publisher) service.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
