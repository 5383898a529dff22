package aipipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// fakeQueue 记录入队调用的假队列客户端
type fakeQueue struct {
	enqueued []string
	err      error
}

func (f *fakeQueue) EnqueueExecuteRun(runID string) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, runID)
	return nil
}

func (f *fakeQueue) Close() error { return nil }

func newTestDispatcher(t *testing.T, db *gorm.DB, q *fakeQueue) *Dispatcher {
	t.Helper()
	return NewDispatcher(db, NewConfigStore(db), q, "v1", zaptest.NewLogger(t))
}

func versionEvent(tenantID string) VersionCreatedEvent {
	return VersionCreatedEvent{
		DocumentVersionID: uuid.New().String(),
		DocumentID:        uuid.New().String(),
		TenantID:          tenantID,
		Text:              "texto del documento",
		PageCount:         3,
	}
}

func TestOnVersionCreatedDispatchesRun(t *testing.T) {
	db := setupPipelineTestDB(t)
	q := &fakeQueue{}
	d := newTestDispatcher(t, db, q)
	tenantID := uuid.New().String()
	seedConfig(t, db, tenantID, nil)

	event := versionEvent(tenantID)
	d.OnVersionCreated(context.Background(), event)

	var runs []AiRun
	require.NoError(t, db.Where("tenant_id = ?", tenantID).Find(&runs).Error)
	require.Len(t, runs, 1)
	require.Equal(t, StatusQueued, runs[0].Status)
	require.Equal(t, TaskSummarize, runs[0].Task)
	require.Equal(t, event.DocumentVersionID, runs[0].DocumentVersionID)
	require.Equal(t, TriggeredBySystem, runs[0].TriggeredBy)
	require.Equal(t, []string{runs[0].ID}, q.enqueued)
}

func TestOnVersionCreatedIgnoresDisabledTenant(t *testing.T) {
	db := setupPipelineTestDB(t)
	q := &fakeQueue{}
	d := newTestDispatcher(t, db, q)
	tenantID := uuid.New().String()
	seedConfig(t, db, tenantID, func(cfg *TenantAiConfig) {
		cfg.Enabled = false
	})

	d.OnVersionCreated(context.Background(), versionEvent(tenantID))

	var count int64
	require.NoError(t, db.Model(&AiRun{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, q.enqueued)
}

func TestOnVersionCreatedIgnoresUnknownTenant(t *testing.T) {
	db := setupPipelineTestDB(t)
	q := &fakeQueue{}
	d := newTestDispatcher(t, db, q)

	d.OnVersionCreated(context.Background(), versionEvent(uuid.New().String()))

	var count int64
	require.NoError(t, db.Model(&AiRun{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestOnVersionCreatedEnforcesMaxPages(t *testing.T) {
	db := setupPipelineTestDB(t)
	q := &fakeQueue{}
	d := newTestDispatcher(t, db, q)
	tenantID := uuid.New().String()
	seedConfig(t, db, tenantID, func(cfg *TenantAiConfig) {
		cfg.MaxPagesPerDoc = 10
	})

	event := versionEvent(tenantID)
	event.PageCount = 11
	d.OnVersionCreated(context.Background(), event)

	// 超限文档连运行记录都不创建
	var count int64
	require.NoError(t, db.Model(&AiRun{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, q.enqueued)
}

func TestDispatchRunHashDeterministic(t *testing.T) {
	db := setupPipelineTestDB(t)
	q := &fakeQueue{}
	d := newTestDispatcher(t, db, q)
	tenantID := uuid.New().String()
	cfg := seedConfig(t, db, tenantID, nil)

	event := versionEvent(tenantID)
	first, err := d.DispatchRun(context.Background(), cfg, event, TaskSummarize)
	require.NoError(t, err)
	second, err := d.DispatchRun(context.Background(), cfg, event, TaskSummarize)
	require.NoError(t, err)

	// 同一版本同一任务的指纹恒定；任务不同则指纹不同
	require.Equal(t, first.InputHash, second.InputHash)

	other, err := d.DispatchRun(context.Background(), cfg, event, TaskClassify)
	require.NoError(t, err)
	require.NotEqual(t, first.InputHash, other.InputHash)
}

func TestDispatchRunHashUsesRedactedText(t *testing.T) {
	db := setupPipelineTestDB(t)
	q := &fakeQueue{}
	d := newTestDispatcher(t, db, q)
	tenantID := uuid.New().String()
	cfg := seedConfig(t, db, tenantID, func(cfg *TenantAiConfig) {
		cfg.RedactPII = true
	})

	event := versionEvent(tenantID)
	event.Text = "contactar a ana@example.com"
	run, err := d.DispatchRun(context.Background(), cfg, event, TaskSummarize)
	require.NoError(t, err)

	// 指纹对脱敏后的正文计算，与外发内容一致
	expected := InputHash(TaskSummarize, "v1", RedactPII(event.Text))
	require.Equal(t, expected, run.InputHash)
	require.NotEqual(t, InputHash(TaskSummarize, "v1", event.Text), run.InputHash)
}

func TestDispatchRunKeepsRunWhenEnqueueFails(t *testing.T) {
	db := setupPipelineTestDB(t)
	q := &fakeQueue{err: context.DeadlineExceeded}
	d := newTestDispatcher(t, db, q)
	tenantID := uuid.New().String()
	cfg := seedConfig(t, db, tenantID, nil)

	run, err := d.DispatchRun(context.Background(), cfg, versionEvent(tenantID), TaskSummarize)
	require.Error(t, err)
	require.NotNil(t, run)

	// 运行已落库，可由运维重新入队
	var persisted AiRun
	require.NoError(t, db.Where("id = ?", run.ID).First(&persisted).Error)
	require.Equal(t, StatusQueued, persisted.Status)
}
