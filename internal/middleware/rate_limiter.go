package middleware

import (
	"context"
	"fmt"
	"time"

	"docuflow/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// ActionRateLimiter 基于 Redis 固定窗口的操作限流器
// 针对手动触发的 AI 操作（regenerate 等），按 (租户, 用户, 操作) 维度计数，
// 防止滥用异步流水线。计数器与 TTL 一起写入，窗口过期后自动归零。
type ActionRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewActionRateLimiter 创建限流器
func NewActionRateLimiter(client *redis.Client, limit int, window time.Duration) *ActionRateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &ActionRateLimiter{client: client, limit: limit, window: window}
}

// Allow 判断一次操作是否放行
// Redis 不可用时放行（限流是保护手段，不是正确性保障）
func (l *ActionRateLimiter) Allow(ctx context.Context, tenantID, userID, action string) bool {
	if l == nil || l.client == nil {
		return true
	}
	key := l.key(tenantID, userID, action)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true
	}

	return incr.Val() <= int64(l.limit)
}

func (l *ActionRateLimiter) key(tenantID, userID, action string) string {
	return fmt.Sprintf("ratelimit:ai:%s:%s:%s", action, tenantID, userID)
}

// RateLimitAction 手动操作限流中间件
// 依赖上游 TenantContextMiddleware 已注入 tenant_id / user_id
func RateLimitAction(limiter *ActionRateLimiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString("tenant_id")
		userID := c.GetString("user_id")

		if !limiter.Allow(c.Request.Context(), tenantID, userID, action) {
			common.AbortWithError(c, common.CodeTooManyRequests, common.GetErrorMessage(common.CodeTooManyRequests))
			return
		}

		c.Next()
	}
}
