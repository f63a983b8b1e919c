package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kickspot/internal/handler"
	"kickspot/pkg/logger"
	"kickspot/pkg/metrics"
	"kickspot/pkg/rbac"
	"kickspot/pkg/trace"
	"kickspot/pkg/util"
)

// AuthMiddleware 校验 JWT，把 user_id 和 role 写入 context
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := util.ParseJWT(token, jwtSecret)
		if err != nil || !rbac.IsKnownRole(claims.Role) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(handler.ContextUserID, claims.UserID)
		c.Set(handler.ContextRole, claims.Role)
		c.Next()
	}
}

// RequirePermission 中间件：要求用户具有指定权限
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(handler.ContextRole)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			return
		}

		if err := rbac.CheckPermission(role, permission); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}

		c.Next()
	}
}

// TraceMiddleware 复用请求头里的 trace id，没有就生成一个
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(trace.HeaderName)
		if id == "" {
			id = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), id))
		c.Header(trace.HeaderName, id)
		c.Next()
	}
}

// MetricsMiddleware 记录请求耗时，按路由模板聚合
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// RecoveryMiddleware 捕获 panic，记录日志并返回 500
func RecoveryMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithTrace(c.Request.Context(), log).Error("Panic in handler",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// CORS 允许配置中的来源跨域访问
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := origins[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+trace.HeaderName)
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
