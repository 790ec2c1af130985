package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailboard/internal/service"
	"mailboard/pkg/logger"
)

type ImportHandler struct {
	importService *service.ImportService
	log           *zap.Logger
}

func NewImportHandler(importService *service.ImportService, log *zap.Logger) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		log:           log,
	}
}

// Start handles POST /emails/import. The run executes synchronously;
// the response carries the run summary.
func (h *ImportHandler) Start(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	summary, err := h.importService.Run(c.Request.Context(), userID)
	if err != nil {
		h.writeImportError(c, userID, err)
		return
	}

	message := "import completed"
	if summary.EmailsProcessed == 0 {
		message = "no new emails to import"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"summary": summary,
	})
}

// Status handles GET /emails/import
func (h *ImportHandler) Status(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	status, err := h.importService.Status(c.Request.Context(), userID)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.log).Error("failed to load import status",
			zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load import status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *ImportHandler) writeImportError(c *gin.Context, userID int64, err error) {
	var rateLimited *service.RateLimitedError

	switch {
	case errors.Is(err, service.ErrNotConfigured):
		c.JSON(http.StatusBadRequest, gin.H{"error": "gmail is not configured"})
	case errors.Is(err, service.ErrAlreadyInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "an import is already in progress"})
	case errors.As(err, &rateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       rateLimited.Error(),
			"waitMinutes": rateLimited.WaitMinutes,
		})
	default:
		logger.WithTrace(c.Request.Context(), h.log).Error("import run failed",
			zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
	}
}
