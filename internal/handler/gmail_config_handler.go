package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailboard/internal/service"
	"mailboard/pkg/logger"
)

type GmailConfigHandler struct {
	configService *service.GmailConfigService
	log           *zap.Logger
}

func NewGmailConfigHandler(configService *service.GmailConfigService, log *zap.Logger) *GmailConfigHandler {
	return &GmailConfigHandler{
		configService: configService,
		log:           log,
	}
}

// Status handles GET /user/gmail-config
func (h *GmailConfigHandler) Status(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	status, err := h.configService.Status(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load gmail config"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// Configure handles POST /user/gmail-config. The token is validated
// against the provider before it is stored.
func (h *GmailConfigHandler) Configure(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var req struct {
		AccessToken   string `json:"accessToken" binding:"required"`
		ReferenceDate string `json:"referenceDate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	referenceDate := time.Now()
	if req.ReferenceDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.ReferenceDate)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", req.ReferenceDate)
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referenceDate"})
			return
		}
		referenceDate = parsed
	}

	address, err := h.configService.Configure(c.Request.Context(), userID, req.AccessToken, referenceDate)
	if err != nil {
		var provErr *service.ProviderValidationError
		if errors.As(err, &provErr) {
			c.JSON(provErr.StatusCode, gin.H{
				"error": provErr.Message,
				"code":  provErr.Code,
			})
			return
		}
		logger.WithTrace(c.Request.Context(), h.log).Error("failed to store gmail config",
			zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store gmail config"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"configured": true,
		"address":    address,
	})
}

// Disconnect handles DELETE /user/gmail-config
func (h *GmailConfigHandler) Disconnect(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	if err := h.configService.Disconnect(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect gmail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"configured": false})
}
