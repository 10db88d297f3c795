package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const requestLoggerKey = "requestLogger"

// SlogLoggerMiddleware 为每个请求派生带关联信息的 slog.Logger，
// 并在请求结束时输出一条访问日志。
func SlogLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		reqLog := logger.With(
			slog.String("correlation_id", GetCorrelationID(c)),
			slog.String("method", c.Request.Method),
			slog.String("route", route),
		)
		c.Set(requestLoggerKey, reqLog)

		start := time.Now()
		c.Next()

		attrs := []any{
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		}
		if userID, ok := c.Get("userID"); ok {
			attrs = append(attrs, slog.Any("user_id", userID))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("gin_errors", c.Errors.String()))
		}
		reqLog.Info("request completed", attrs...)
	}
}

// LoggerFromContext 取回请求级 Logger；中间件缺位时退回默认 Logger。
func LoggerFromContext(c *gin.Context) *slog.Logger {
	if value, ok := c.Get(requestLoggerKey); ok {
		if logger, ok := value.(*slog.Logger); ok {
			return logger
		}
	}
	return slog.Default()
}
