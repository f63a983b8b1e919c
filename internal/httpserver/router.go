package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kickspot/internal/handler"
	"kickspot/internal/repository"
	"kickspot/pkg/rbac"
)

// Deps 路由依赖；Admin 为 nil 时不注册 outbox 管理接口
type Deps struct {
	Notifications  *handler.NotificationHandler
	Streams        *handler.StreamHandler
	Events         *handler.EventHandler
	Admin          *handler.AdminHandler
	Store          repository.NotificationStore
	// MQ 可为 nil（未启用 outbox）
	MQ             interface{ IsConnected() bool }
	JWTSecret      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(d Deps) *Router {
	r := gin.New()
	r.Use(RecoveryMiddleware(d.Logger), TraceMiddleware(), MetricsMiddleware(), CORS(d.AllowedOrigins))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		if d.MQ != nil && !d.MQ.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(d.JWTSecret))
	{
		own := api.Group("/notifications")
		own.Use(RequirePermission(rbac.PermissionReadOwnNotifications))
		own.GET("", d.Notifications.List)
		own.GET("/unread-count", d.Notifications.UnreadCount)
		own.GET("/ws", d.Streams.WebSocket)
		own.GET("/stream", d.Streams.Stream)

		manage := api.Group("/notifications")
		manage.Use(RequirePermission(rbac.PermissionManageOwnNotifications))
		manage.PATCH("/mark-all-read", d.Notifications.MarkAllRead)
		manage.PATCH("/:id/read", d.Notifications.MarkRead)
		manage.DELETE("/:id", d.Notifications.Delete)

		api.POST("/notifications", RequirePermission(rbac.PermissionSendNotification), d.Notifications.Send)
		api.POST("/internal/events", RequirePermission(rbac.PermissionInjectDomainEvent), d.Events.Inject)

		if d.Admin != nil {
			admin := api.Group("/admin/outbox")
			admin.Use(RequirePermission(rbac.PermissionInjectDomainEvent))
			admin.POST("/replay", d.Admin.ReplayOutboxEvent)
			admin.POST("/replay-failed", d.Admin.ReplayFailedEvents)
		}
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
