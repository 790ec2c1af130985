package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"mailboard/internal/events"
	"mailboard/internal/model"
	"mailboard/internal/repository"
	"mailboard/pkg/mq"
)

// ImportEventHandler turns import lifecycle events into feed
// notifications.
type ImportEventHandler struct {
	repo   *repository.NotificationRepository
	dlq    *mq.Publisher
	logger *zap.Logger
}

func NewImportEventHandler(repo *repository.NotificationRepository, dlq *mq.Publisher, logger *zap.Logger) *ImportEventHandler {
	return &ImportEventHandler{
		repo:   repo,
		dlq:    dlq,
		logger: logger,
	}
}

// HandleImportCompleted consumes import.completed.
func (h *ImportEventHandler) HandleImportCompleted(ctx context.Context, raw json.RawMessage) error {
	var p events.ImportCompletedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.deadLetter(events.RoutingImportCompleted, raw, err)
		return nil
	}

	n := &model.Notification{
		UserID: p.UserID,
		Kind:   model.NotificationImportCompleted,
		Message: fmt.Sprintf("Import finished: %d emails processed, %d tasks created",
			p.EmailsProcessed, p.TasksCreated),
	}
	if err := h.repo.Insert(ctx, n); err != nil {
		h.logger.Error("Failed to insert import notification",
			zap.Int64("user_id", p.UserID),
			zap.Int64("run_id", p.RunID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("Import notification created",
		zap.Int64("user_id", p.UserID),
		zap.Int64("run_id", p.RunID),
	)
	return nil
}

// HandleImportFailed consumes import.failed.
func (h *ImportEventHandler) HandleImportFailed(ctx context.Context, raw json.RawMessage) error {
	var p events.ImportFailedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.deadLetter(events.RoutingImportFailed, raw, err)
		return nil
	}

	n := &model.Notification{
		UserID:  p.UserID,
		Kind:    model.NotificationImportFailed,
		Message: "Import failed: " + p.Error,
	}
	if err := h.repo.Insert(ctx, n); err != nil {
		h.logger.Error("Failed to insert import-failed notification",
			zap.Int64("user_id", p.UserID),
			zap.Int64("run_id", p.RunID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// deadLetter parks a malformed payload instead of requeueing it
// forever.
func (h *ImportEventHandler) deadLetter(routingKey string, raw json.RawMessage, cause error) {
	h.logger.Error("Malformed event payload",
		zap.String("routing_key", routingKey),
		zap.Error(cause),
	)
	if h.dlq == nil {
		return
	}
	if err := h.dlq.PublishToDLQ(routingKey, raw, cause.Error()); err != nil {
		h.logger.Error("Failed to publish to DLQ",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}
