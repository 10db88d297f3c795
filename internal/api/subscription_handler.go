package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvforge/internal/subscription"
)

// SubscriptionHandler 暴露当前用户的订阅档位。
type SubscriptionHandler struct {
	resolver *subscription.Resolver
	logger   *slog.Logger
}

func NewSubscriptionHandler(resolver *subscription.Resolver, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{resolver: resolver, logger: logger}
}

// GET /v1/subscription
// 订阅记录损坏（price id 不匹配任何档位）按服务端错误处理并记录日志，
// 绝不静默降级成 free。
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	level, err := resolveLevel(c, h.resolver, userID)
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidSubscription) {
			h.logger.Error("invalid subscription record",
				slog.Uint64("userID", uint64(userID)),
				slog.String("error", err.Error()))
		}
		Internal(c, "failed to resolve subscription")
		return
	}

	c.JSON(http.StatusOK, gin.H{"level": level})
}
