package airuns

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

type recordingQueue struct {
	enqueued []string
}

func (q *recordingQueue) EnqueueExecuteRun(runID string) error {
	q.enqueued = append(q.enqueued, runID)
	return nil
}

func (q *recordingQueue) Close() error { return nil }

type runsFixture struct {
	router *gin.Engine
	db     *gorm.DB
	queue  *recordingQueue
}

func setupRunsFixture(t *testing.T, tenantID, userID string) *runsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&document.Document{},
		&document.DocumentVersion{},
		&aipipeline.TenantAiConfig{},
		&aipipeline.AiRun{},
		&aipipeline.AiOutput{},
	))

	q := &recordingQueue{}
	configs := aipipeline.NewConfigStore(db)
	dispatcher := aipipeline.NewDispatcher(db, configs, q, "v1", zaptest.NewLogger(t))
	service := aipipeline.NewService(db, configs, dispatcher, zaptest.NewLogger(t))
	h := NewHandler(service)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("tenant_id", tenantID)
		c.Set("user_id", userID)
	})
	router.GET("/documents/:id/ai/runs", h.List)
	router.POST("/documents/:id/versions/:versionId/ai/regenerate", h.Regenerate)
	router.POST("/documents/:id/ai/apply-suggestions", h.ApplySuggestions)
	router.GET("/ai/runs/:id/output", h.GetOutput)
	router.POST("/ai/runs/:id/feedback", h.MarkIncorrect)

	return &runsFixture{router: router, db: db, queue: q}
}

func (f *runsFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *runsFixture) seedEnabledConfig(t *testing.T, tenantID string) {
	t.Helper()
	require.NoError(t, f.db.Create(&aipipeline.TenantAiConfig{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		Provider:      aipipeline.ProviderOpenAI,
		Enabled:       true,
		DailyDocLimit: 100,
		StoreOutputs:  true,
	}).Error)
}

func (f *runsFixture) seedVersion(t *testing.T, tenantID, documentID string) *document.DocumentVersion {
	t.Helper()
	version := &document.DocumentVersion{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		DocumentID:    documentID,
		VersionNumber: 1,
		ExtractedText: "texto",
		PageCount:     2,
	}
	require.NoError(t, f.db.Create(version).Error)
	return version
}

func TestRegenerateAccepted(t *testing.T) {
	tenantID := uuid.New().String()
	f := setupRunsFixture(t, tenantID, "user-1")
	f.seedEnabledConfig(t, tenantID)
	documentID := uuid.New().String()
	version := f.seedVersion(t, tenantID, documentID)

	path := fmt.Sprintf("/documents/%s/versions/%s/ai/regenerate", documentID, version.ID)
	rec := f.do(t, http.MethodPost, path, map[string]any{"task": "summarize"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.queue.enqueued, 1)

	var run aipipeline.AiRun
	require.NoError(t, f.db.Where("document_version_id = ?", version.ID).First(&run).Error)
	require.Equal(t, aipipeline.StatusQueued, run.Status)
	require.Equal(t, "user-1", run.TriggeredBy)
}

func TestRegenerateNotEnabledConflicts(t *testing.T) {
	tenantID := uuid.New().String()
	f := setupRunsFixture(t, tenantID, "user-1")
	documentID := uuid.New().String()
	version := f.seedVersion(t, tenantID, documentID)

	path := fmt.Sprintf("/documents/%s/versions/%s/ai/regenerate", documentID, version.ID)
	rec := f.do(t, http.MethodPost, path, map[string]any{})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Empty(t, f.queue.enqueued)
}

func TestRegenerateUnknownVersion(t *testing.T) {
	tenantID := uuid.New().String()
	f := setupRunsFixture(t, tenantID, "user-1")
	f.seedEnabledConfig(t, tenantID)

	path := fmt.Sprintf("/documents/%s/versions/%s/ai/regenerate", uuid.New().String(), uuid.New().String())
	rec := f.do(t, http.MethodPost, path, map[string]any{})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOutputNotFound(t *testing.T) {
	tenantID := uuid.New().String()
	f := setupRunsFixture(t, tenantID, "user-1")

	rec := f.do(t, http.MethodGet, "/ai/runs/"+uuid.New().String()+"/output", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedbackFlow(t *testing.T) {
	tenantID := uuid.New().String()
	f := setupRunsFixture(t, tenantID, "user-1")

	run := &aipipeline.AiRun{
		ID:                uuid.New().String(),
		TenantID:          tenantID,
		DocumentID:        uuid.New().String(),
		DocumentVersionID: uuid.New().String(),
		Task:              aipipeline.TaskSummarize,
		Provider:          aipipeline.ProviderOpenAI,
		Status:            aipipeline.StatusSuccess,
		InputHash:         aipipeline.InputHash(aipipeline.TaskSummarize, "v1", "texto"),
		PromptVersion:     "v1",
		TriggeredBy:       aipipeline.TriggeredBySystem,
	}
	require.NoError(t, f.db.Create(run).Error)
	require.NoError(t, f.db.Create(&aipipeline.AiOutput{
		ID:       uuid.New().String(),
		RunID:    run.ID,
		TenantID: tenantID,
		Summary:  "Resumen",
	}).Error)

	rec := f.do(t, http.MethodPost, "/ai/runs/"+run.ID+"/feedback", map[string]any{
		"comment": "mezcla dos documentos",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/ai/runs/"+run.ID+"/output", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "mezcla dos documentos")
}

func TestListRunsEnvelope(t *testing.T) {
	tenantID := uuid.New().String()
	f := setupRunsFixture(t, tenantID, "user-1")
	documentID := uuid.New().String()

	for i := 0; i < 2; i++ {
		require.NoError(t, f.db.Create(&aipipeline.AiRun{
			ID:                uuid.New().String(),
			TenantID:          tenantID,
			DocumentID:        documentID,
			DocumentVersionID: uuid.New().String(),
			Task:              aipipeline.TaskSummarize,
			Provider:          aipipeline.ProviderOpenAI,
			Status:            aipipeline.StatusQueued,
			InputHash:         aipipeline.InputHash(aipipeline.TaskSummarize, "v1", "texto"),
			PromptVersion:     "v1",
			TriggeredBy:       aipipeline.TriggeredBySystem,
		}).Error)
	}

	rec := f.do(t, http.MethodGet, "/documents/"+documentID+"/ai/runs?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Items      []aipipeline.AiRun `json:"items"`
			Pagination struct {
				Total int64 `json:"total"`
			} `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.Len(t, envelope.Data.Items, 2)
	require.EqualValues(t, 2, envelope.Data.Pagination.Total)
}
