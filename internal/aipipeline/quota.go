package aipipeline

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// QuotaTracker 纯读侧的配额/预算统计
// 不维护独立计数器，每次守卫评估都直接对 ai_runs 账本做聚合查询，
// 用少量查询成本换取并发写入下的账实一致。
type QuotaTracker struct {
	db  *gorm.DB
	now func() time.Time
}

// NewQuotaTracker 创建统计器
func NewQuotaTracker(db *gorm.DB) *QuotaTracker {
	return &QuotaTracker{db: db, now: time.Now}
}

// DailySuccessCount 今日（本地零点起）成功处理的文档数
func (t *QuotaTracker) DailySuccessCount(ctx context.Context, tenantID string) (int64, error) {
	now := t.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var count int64
	err := t.db.WithContext(ctx).
		Model(&AiRun{}).
		Where("tenant_id = ? AND status = ? AND created_at >= ?", tenantID, StatusSuccess, midnight).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计今日成功运行数失败: %w", err)
	}
	return count, nil
}

// MonthlySpendCents 本自然月累计费用（分）
func (t *QuotaTracker) MonthlySpendCents(ctx context.Context, tenantID string) (int64, error) {
	now := t.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var total int64
	err := t.db.WithContext(ctx).
		Model(&AiRun{}).
		Where("tenant_id = ? AND created_at >= ?", tenantID, monthStart).
		Select("COALESCE(SUM(cost_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("统计本月费用失败: %w", err)
	}
	return total, nil
}
