package middleware

import (
	"net/http"
	"strings"

	tenantctx "docuflow/internal/tenant"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 身份头由上游网关在认证后注入，本服务视其为可信输入
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

// TenantContextMiddleware 将网关注入的租户/用户标识转换为 tenant.TenantContext，
// 并注入标准 context.Context。缺少租户标识的请求直接拒绝。
func TenantContextMiddleware(logger *zap.Logger) gin.HandlerFunc {
	log := logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(HeaderTenantID))
		if tenantID == "" {
			log.Warn("request missing tenant id", zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "缺少租户信息"})
			return
		}

		tc := tenantctx.TenantContext{
			TenantID: tenantID,
			UserID:   strings.TrimSpace(c.GetHeader(HeaderUserID)),
		}

		c.Set("tenant_id", tc.TenantID)
		c.Set("user_id", tc.UserID)

		ctx := tenantctx.WithTenantContext(c.Request.Context(), tc)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
