package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailboard/internal/repository"
	"mailboard/pkg/logger"
)

type EmailHandler struct {
	emailRepo *repository.EmailRepository
	log       *zap.Logger
}

func NewEmailHandler(emailRepo *repository.EmailRepository, log *zap.Logger) *EmailHandler {
	return &EmailHandler{
		emailRepo: emailRepo,
		log:       log,
	}
}

// List handles GET /emails
func (h *EmailHandler) List(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	emails, err := h.emailRepo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.log).Error("failed to list emails",
			zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list emails"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"emails": emails})
}

// ListProcessed handles GET /emails/processed with page/limit
// pagination; each email carries its generated task summaries.
func (h *EmailHandler) ListProcessed(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(c, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	emails, total, err := h.emailRepo.ListProcessed(c.Request.Context(), userID, (page-1)*limit, limit)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.log).Error("failed to list processed emails",
			zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list emails"})
		return
	}

	totalPages := (total + limit - 1) / limit
	c.JSON(http.StatusOK, gin.H{
		"emails":     emails,
		"total":      total,
		"page":       page,
		"totalPages": totalPages,
	})
}
