package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"docuflow/internal/aipipeline"
	"docuflow/internal/document"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type noopQueue struct{ enqueued int }

func (q *noopQueue) EnqueueExecuteRun(string) error {
	q.enqueued++
	return nil
}

func (q *noopQueue) Close() error { return nil }

func setupEventsRouter(t *testing.T) (*gin.Engine, *gorm.DB, *noopQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&document.DocumentVersion{},
		&aipipeline.TenantAiConfig{},
		&aipipeline.AiRun{},
	))

	q := &noopQueue{}
	dispatcher := aipipeline.NewDispatcher(db, aipipeline.NewConfigStore(db), q, "v1", zaptest.NewLogger(t))
	h := NewHandler(dispatcher)

	router := gin.New()
	router.POST("/internal/events/version-created", h.VersionCreated)
	return router, db, q
}

func postEvent(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/internal/events/version-created", &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestVersionCreatedDispatches(t *testing.T) {
	router, db, q := setupEventsRouter(t)
	tenantID := uuid.New().String()
	require.NoError(t, db.Create(&aipipeline.TenantAiConfig{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		Provider:      aipipeline.ProviderOpenAI,
		Enabled:       true,
		DailyDocLimit: 10,
	}).Error)

	rec := postEvent(t, router, map[string]any{
		"documentVersionId": uuid.New().String(),
		"documentId":        uuid.New().String(),
		"tenantId":          tenantID,
		"text":              "texto",
		"pageCount":         2,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, q.enqueued)

	var run aipipeline.AiRun
	require.NoError(t, db.First(&run).Error)
	require.Equal(t, aipipeline.TriggeredBySystem, run.TriggeredBy)
}

func TestVersionCreatedAcceptsDisabledTenant(t *testing.T) {
	router, db, q := setupEventsRouter(t)

	// 未启用的租户照样返回 202，只是不产生运行
	rec := postEvent(t, router, map[string]any{
		"documentVersionId": uuid.New().String(),
		"documentId":        uuid.New().String(),
		"tenantId":          uuid.New().String(),
		"text":              "texto",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Zero(t, q.enqueued)

	var count int64
	require.NoError(t, db.Model(&aipipeline.AiRun{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestVersionCreatedRejectsIncompletePayload(t *testing.T) {
	router, _, _ := setupEventsRouter(t)

	rec := postEvent(t, router, map[string]any{"text": "sin ids"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
