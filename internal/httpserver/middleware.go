package httpserver

import (
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habitsync/pkg/logger"
	"habitsync/pkg/metrics"
	"habitsync/pkg/trace"
)

// TraceMiddleware 为每个请求注入 trace_id，并回写到响应 header
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := trace.FromHeader(c.GetHeader(trace.HeaderName))
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName, traceID)
		c.Next()
	}
}

// RequestLogMiddleware 记录请求日志和 HTTP 耗时指标
func RequestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), latency)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		}
		l := logger.WithTrace(c.Request.Context(), log)
		if c.Writer.Status() >= 500 {
			l.Warn("HTTP Request", fields...)
			return
		}
		l.Info("HTTP Request", fields...)
	}
}

// CORSMiddleware 允许任意来源访问 API，并暴露 trace header
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", trace.HeaderName},
		ExposeHeaders:   []string{trace.HeaderName},
		MaxAge:          12 * time.Hour,
	})
}
