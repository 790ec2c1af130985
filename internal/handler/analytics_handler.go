package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailboard/internal/service"
	"mailboard/pkg/logger"
)

type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	log       *zap.Logger
}

func NewAnalyticsHandler(analytics *service.AnalyticsService, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		log:       log,
	}
}

// Overview handles GET /analytics/overview
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	overview, err := h.analytics.Overview(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, userID, "overview", err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// TasksDistribution handles GET /analytics/tasks-distribution
func (h *AnalyticsHandler) TasksDistribution(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	dist, err := h.analytics.TasksDistribution(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, userID, "tasks-distribution", err)
		return
	}
	c.JSON(http.StatusOK, dist)
}

// TopSenders handles GET /analytics/top-senders?limit=
func (h *AnalyticsHandler) TopSenders(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	senders, err := h.analytics.TopSenders(c.Request.Context(), userID, queryInt(c, "limit", 5))
	if err != nil {
		h.fail(c, userID, "top-senders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"senders": senders})
}

// UpcomingTasks handles GET /analytics/upcoming-tasks?daysAhead=
func (h *AnalyticsHandler) UpcomingTasks(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	items, err := h.analytics.UpcomingTasks(c.Request.Context(), userID, queryInt(c, "daysAhead", 7))
	if err != nil {
		h.fail(c, userID, "upcoming-tasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": items})
}

// ProductivityHeatmap handles GET /analytics/productivity-heatmap?days=
func (h *AnalyticsHandler) ProductivityHeatmap(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	grid, err := h.analytics.ProductivityHeatmap(c.Request.Context(), userID, queryInt(c, "days", 30))
	if err != nil {
		h.fail(c, userID, "productivity-heatmap", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"heatmap": grid})
}

// EmailsByCategory handles GET /analytics/emails-category?days=
func (h *AnalyticsHandler) EmailsByCategory(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	timeline, err := h.analytics.EmailsByCategory(c.Request.Context(), userID, queryInt(c, "days", 30))
	if err != nil {
		h.fail(c, userID, "emails-category", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": timeline})
}

func (h *AnalyticsHandler) fail(c *gin.Context, userID int64, endpoint string, err error) {
	logger.WithTrace(c.Request.Context(), h.log).Error("analytics query failed",
		zap.Int64("user_id", userID),
		zap.String("endpoint", endpoint),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "analytics query failed"})
}
