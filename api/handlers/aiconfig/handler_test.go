package aiconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"docuflow/internal/aipipeline"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupConfigRouter(t *testing.T, tenantID string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&aipipeline.TenantAiConfig{}))

	h := NewHandler(aipipeline.NewConfigStore(db))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("tenant_id", tenantID)
	})
	router.GET("/ai/config", h.Get)
	router.PUT("/ai/config", h.Update)
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func TestGetConfigDefaults(t *testing.T) {
	router, _ := setupConfigRouter(t, "tenant-1")

	rec := doJSON(t, router, http.MethodGet, "/ai/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	require.Equal(t, "none", data["provider"])
	require.Equal(t, false, data["enabled"])
	require.Equal(t, false, data["credentialSet"])
}

func TestUpdateConfigNeverEchoesCredential(t *testing.T) {
	router, _ := setupConfigRouter(t, "tenant-1")

	secret := "sk-test-abc"
	rec := doJSON(t, router, http.MethodPut, "/ai/config", map[string]any{
		"provider":      "openai",
		"enabled":       true,
		"credential":    secret,
		"dailyDocLimit": 25,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), secret)

	data := decodeData(t, rec)
	require.Equal(t, "openai", data["provider"])
	require.Equal(t, true, data["credentialSet"])
	require.EqualValues(t, 25, data["dailyDocLimit"])

	// GET 同样只暴露 credentialSet
	rec = doJSON(t, router, http.MethodGet, "/ai/config", nil)
	require.NotContains(t, rec.Body.String(), secret)
	require.Equal(t, true, decodeData(t, rec)["credentialSet"])
}

func TestUpdateConfigRejectsUnknownProvider(t *testing.T) {
	router, _ := setupConfigRouter(t, "tenant-1")

	rec := doJSON(t, router, http.MethodPut, "/ai/config", map[string]any{
		"provider": "azure",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateConfigDisableKeepsRow(t *testing.T) {
	router, db := setupConfigRouter(t, "tenant-1")

	rec := doJSON(t, router, http.MethodPut, "/ai/config", map[string]any{
		"provider": "openai",
		"enabled":  true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// 配置只被禁用，不被删除
	rec = doJSON(t, router, http.MethodPut, "/ai/config", map[string]any{
		"provider": "openai",
		"enabled":  false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, db.Model(&aipipeline.TenantAiConfig{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
