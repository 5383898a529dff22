package aipipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedRunAt(t *testing.T, db *gorm.DB, tenantID string, status RunStatus, costCents int, createdAt time.Time) {
	t.Helper()
	run := &AiRun{
		ID:                uuid.New().String(),
		TenantID:          tenantID,
		DocumentID:        uuid.New().String(),
		DocumentVersionID: uuid.New().String(),
		Task:              TaskSummarize,
		Provider:          ProviderOpenAI,
		Status:            status,
		InputHash:         InputHash(TaskSummarize, "v1", "texto"),
		PromptVersion:     "v1",
		TriggeredBy:       TriggeredBySystem,
		CostCents:         costCents,
	}
	run.CreatedAt = createdAt
	run.UpdatedAt = createdAt
	require.NoError(t, db.Create(run).Error)
}

func TestDailySuccessCount(t *testing.T) {
	db := setupPipelineTestDB(t)
	tenantID := uuid.New().String()

	fixed := time.Date(2026, 8, 31, 15, 0, 0, 0, time.Local)
	tracker := &QuotaTracker{db: db, now: func() time.Time { return fixed }}

	// 今日两条成功、一条失败、一条 skipped；昨日一条成功
	seedRunAt(t, db, tenantID, StatusSuccess, 5, fixed.Add(-time.Hour))
	seedRunAt(t, db, tenantID, StatusSuccess, 5, fixed.Add(-2*time.Hour))
	seedRunAt(t, db, tenantID, StatusFailed, 0, fixed.Add(-time.Hour))
	seedRunAt(t, db, tenantID, StatusSkipped, 0, fixed.Add(-time.Hour))
	seedRunAt(t, db, tenantID, StatusSuccess, 5, fixed.Add(-24*time.Hour))

	// 其他租户不串账
	seedRunAt(t, db, uuid.New().String(), StatusSuccess, 5, fixed.Add(-time.Hour))

	count, err := tracker.DailySuccessCount(context.Background(), tenantID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestMonthlySpendCents(t *testing.T) {
	db := setupPipelineTestDB(t)
	tenantID := uuid.New().String()

	fixed := time.Date(2026, 8, 15, 12, 0, 0, 0, time.Local)
	tracker := &QuotaTracker{db: db, now: func() time.Time { return fixed }}

	// 本月的花费全部计入，不区分终态
	seedRunAt(t, db, tenantID, StatusSuccess, 40, fixed.Add(-48*time.Hour))
	seedRunAt(t, db, tenantID, StatusFailed, 10, fixed.Add(-time.Hour))
	// 上月花费不计入
	seedRunAt(t, db, tenantID, StatusSuccess, 500, fixed.AddDate(0, -1, 0))

	spend, err := tracker.MonthlySpendCents(context.Background(), tenantID)
	require.NoError(t, err)
	require.EqualValues(t, 50, spend)
}

func TestMonthlySpendCentsEmpty(t *testing.T) {
	db := setupPipelineTestDB(t)
	tracker := NewQuotaTracker(db)

	spend, err := tracker.MonthlySpendCents(context.Background(), uuid.New().String())
	require.NoError(t, err)
	require.Zero(t, spend)
}
