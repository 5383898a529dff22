package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	tenantctx "docuflow/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTenantContextMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var captured tenantctx.TenantContext
	router := gin.New()
	router.Use(TenantContextMiddleware(zaptest.NewLogger(t)))
	router.GET("/x", func(c *gin.Context) {
		captured = tenantctx.MustTenantContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderTenantID, "tenant-1")
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "tenant-1", captured.TenantID)
	require.Equal(t, "user-1", captured.UserID)
}

func TestTenantContextMiddlewareRejectsMissingTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(TenantContextMiddleware(zaptest.NewLogger(t)))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
