package api

import (
	"github.com/gin-gonic/gin"

	"cvforge/internal/subscription"
)

const subscriptionLevelKey = "subscriptionLevel"

// resolveLevel 解析当前用户的订阅档位，并在单个请求范围内缓存。
// 档位在一次页面渲染里会被多处查询，缓存只是省重复查询，不影响正确性。
func resolveLevel(c *gin.Context, resolver *subscription.Resolver, userID uint) (subscription.Level, error) {
	if value, ok := c.Get(subscriptionLevelKey); ok {
		if level, ok := value.(subscription.Level); ok {
			return level, nil
		}
	}

	level, err := resolver.Resolve(c.Request.Context(), userID)
	if err != nil {
		return "", err
	}
	c.Set(subscriptionLevelKey, level)
	return level, nil
}
