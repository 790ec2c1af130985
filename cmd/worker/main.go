package main

import (
	"go.uber.org/zap"

	"mailboard/internal/config"
	"mailboard/internal/db"
	"mailboard/internal/events"
	"mailboard/internal/mqhandler"
	"mailboard/internal/repository"
	"mailboard/pkg/logger"
	"mailboard/pkg/mq"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting notification worker...")

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	notificationRepo := repository.NewNotificationRepository(dbConn)

	// DLQ publisher for poison messages
	dlq, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init DLQ publisher", zap.Error(err))
	}
	defer dlq.Close()
	if err := dlq.SetupDLQ(events.RoutingImportCompleted, events.RoutingImportFailed, events.RoutingTaskCreated); err != nil {
		log.Fatal("failed to declare DLQ topology", zap.Error(err))
	}

	importHandler := mqhandler.NewImportEventHandler(notificationRepo, dlq, log)
	taskHandler := mqhandler.NewTaskCreatedHandler(notificationRepo, dlq, log)

	// (1) Consumer for import.completed
	consumerCompleted, err := mq.NewConsumer(cfg.MQ.URL, "mailboard.import.completed.q", events.RoutingImportCompleted, log)
	if err != nil {
		log.Fatal("failed to init import.completed consumer", zap.Error(err))
	}
	consumerCompleted.SetHandler(importHandler.HandleImportCompleted)
	go func() {
		if err := consumerCompleted.StartConsuming(); err != nil {
			log.Fatal("import.completed consumer failed", zap.Error(err))
		}
	}()
	defer consumerCompleted.Close()

	// (2) Consumer for import.failed
	consumerFailed, err := mq.NewConsumer(cfg.MQ.URL, "mailboard.import.failed.q", events.RoutingImportFailed, log)
	if err != nil {
		log.Fatal("failed to init import.failed consumer", zap.Error(err))
	}
	consumerFailed.SetHandler(importHandler.HandleImportFailed)
	go func() {
		if err := consumerFailed.StartConsuming(); err != nil {
			log.Fatal("import.failed consumer failed", zap.Error(err))
		}
	}()
	defer consumerFailed.Close()

	// (3) Consumer for task.created
	consumerTask, err := mq.NewConsumer(cfg.MQ.URL, "mailboard.task.created.q", events.RoutingTaskCreated, log)
	if err != nil {
		log.Fatal("failed to init task.created consumer", zap.Error(err))
	}
	consumerTask.SetHandler(taskHandler.HandleTaskCreated)
	go func() {
		if err := consumerTask.StartConsuming(); err != nil {
			log.Fatal("task.created consumer failed", zap.Error(err))
		}
	}()
	defer consumerTask.Close()

	log.Info("All consumers started, worker is ready to process messages")

	// Keep worker running
	select {}
}
