package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"mailboard/internal/events"
	"mailboard/internal/model"
	"mailboard/internal/repository"
	"mailboard/pkg/mq"
)

// TaskCreatedHandler turns task.created events into feed
// notifications.
type TaskCreatedHandler struct {
	repo   *repository.NotificationRepository
	dlq    *mq.Publisher
	logger *zap.Logger
}

func NewTaskCreatedHandler(repo *repository.NotificationRepository, dlq *mq.Publisher, logger *zap.Logger) *TaskCreatedHandler {
	return &TaskCreatedHandler{
		repo:   repo,
		dlq:    dlq,
		logger: logger,
	}
}

// HandleTaskCreated consumes task.created.
func (h *TaskCreatedHandler) HandleTaskCreated(ctx context.Context, raw json.RawMessage) error {
	var p events.TaskCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Malformed task.created payload", zap.Error(err))
		if h.dlq != nil {
			if dlqErr := h.dlq.PublishToDLQ(events.RoutingTaskCreated, raw, err.Error()); dlqErr != nil {
				h.logger.Error("Failed to publish to DLQ", zap.Error(dlqErr))
			}
		}
		return nil
	}

	n := &model.Notification{
		UserID:  p.UserID,
		Kind:    model.NotificationTaskCreated,
		Message: "New task: " + p.Title,
	}
	if err := h.repo.Insert(ctx, n); err != nil {
		h.logger.Error("Failed to insert task notification",
			zap.Int64("user_id", p.UserID),
			zap.Int64("task_id", p.TaskID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("Task notification created",
		zap.Int64("user_id", p.UserID),
		zap.Int64("task_id", p.TaskID),
	)
	return nil
}
