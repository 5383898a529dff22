package aipipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RetentionService 产出保留策略
// store_outputs=false 的租户不长期保留 AI 产出：宽限期（默认 24h，用于
// 让用户有机会应用建议）过后由周期任务清除产出正文，运行账本本身保留，
// 限额/预算统计不受影响。
type RetentionService struct {
	db     *gorm.DB
	grace  time.Duration
	logger *zap.Logger
}

// NewRetentionService 创建保留策略服务
func NewRetentionService(db *gorm.DB, grace time.Duration, logger *zap.Logger) *RetentionService {
	if grace <= 0 {
		grace = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionService{db: db, grace: grace, logger: logger}
}

// PurgeExpiredOutputs 删除保留期外的产出
// 由 worker 的周期任务触发
func (s *RetentionService) PurgeExpiredOutputs(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.grace)

	result := s.db.WithContext(ctx).
		Where("tenant_id IN (?)",
			s.db.Model(&TenantAiConfig{}).
				Select("tenant_id").
				Where("store_outputs = ?", false),
		).
		Where("created_at < ?", cutoff).
		Delete(&AiOutput{})
	if result.Error != nil {
		return 0, fmt.Errorf("清理过期产出失败: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Info("已清理过期 AI 产出", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}
