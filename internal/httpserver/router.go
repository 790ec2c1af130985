package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailboard/internal/handler"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *handler.AuthHandler,
	importHandler *handler.ImportHandler,
	gmailConfigHandler *handler.GmailConfigHandler,
	emailHandler *handler.EmailHandler,
	taskHandler *handler.TaskHandler,
	commentHandler *handler.CommentHandler,
	notificationHandler *handler.NotificationHandler,
	analyticsHandler *handler.AnalyticsHandler,
	jwtSecret string,
	db *pgxpool.Pool,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(MetricsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/emails/import", importHandler.Start)
		auth.GET("/emails/import", importHandler.Status)
		auth.GET("/emails", emailHandler.List)
		auth.GET("/emails/processed", emailHandler.ListProcessed)

		auth.GET("/user/gmail-config", gmailConfigHandler.Status)
		auth.POST("/user/gmail-config", gmailConfigHandler.Configure)
		auth.DELETE("/user/gmail-config", gmailConfigHandler.Disconnect)

		auth.GET("/tasks", taskHandler.List)
		auth.GET("/tasks/:id", taskHandler.Get)
		auth.PATCH("/tasks/:id", taskHandler.Update)
		auth.DELETE("/tasks/:id", taskHandler.Delete)

		auth.GET("/comments", commentHandler.List)
		auth.POST("/comments", commentHandler.Create)
		auth.DELETE("/comments/:id", commentHandler.Delete)

		auth.GET("/notifications", notificationHandler.List)
		auth.POST("/notifications/:id/read", notificationHandler.MarkRead)

		auth.GET("/analytics/overview", analyticsHandler.Overview)
		auth.GET("/analytics/tasks-distribution", analyticsHandler.TasksDistribution)
		auth.GET("/analytics/top-senders", analyticsHandler.TopSenders)
		auth.GET("/analytics/upcoming-tasks", analyticsHandler.UpcomingTasks)
		auth.GET("/analytics/productivity-heatmap", analyticsHandler.ProductivityHeatmap)
		auth.GET("/analytics/emails-category", analyticsHandler.EmailsByCategory)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
