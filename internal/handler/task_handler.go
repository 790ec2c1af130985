package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"mailboard/internal/model"
	"mailboard/internal/repository"
	"mailboard/pkg/logger"
)

type TaskHandler struct {
	taskRepo *repository.TaskRepository
	log      *zap.Logger
}

func NewTaskHandler(taskRepo *repository.TaskRepository, log *zap.Logger) *TaskHandler {
	return &TaskHandler{
		taskRepo: taskRepo,
		log:      log,
	}
}

// List handles GET /tasks
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	tasks, err := h.taskRepo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.log).Error("failed to list tasks",
			zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// Get handles GET /tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	task, err := h.taskRepo.FindByID(c.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// Update handles PATCH /tasks/:id. Only status, priority and dueDate
// are mutable; invalid enum values are rejected.
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Status   *string `json:"status"`
		Priority *string `json:"priority"`
		DueDate  *string `json:"dueDate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Status == nil && req.Priority == nil && req.DueDate == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	var upd repository.TaskUpdate
	if req.Status != nil {
		status := model.TaskStatus(*req.Status)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		upd.Status = &status
	}
	if req.Priority != nil {
		priority := model.Priority(*req.Priority)
		if !priority.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid priority"})
			return
		}
		upd.Priority = &priority
	}
	if req.DueDate != nil {
		upd.SetDueDate = true
		if *req.DueDate != "" {
			parsed, err := time.Parse(time.RFC3339, *req.DueDate)
			if err != nil {
				parsed, err = time.Parse("2006-01-02", *req.DueDate)
			}
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dueDate"})
				return
			}
			upd.DueDate = &parsed
		}
	}

	task, err := h.taskRepo.Update(c.Request.Context(), userID, id, upd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		logger.WithTrace(c.Request.Context(), h.log).Error("failed to update task",
			zap.Int64("user_id", userID), zap.Int64("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// Delete handles DELETE /tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	deleted, err := h.taskRepo.Delete(c.Request.Context(), userID, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete task"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
