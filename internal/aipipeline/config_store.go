package aipipeline

import (
	"context"
	"errors"
	"fmt"

	"docuflow/internal/security"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConfigStore 租户 AI 配置的读写入口
// 配置是其余所有组件的只读输入；每次流水线执行都重新读取，
// 不做进程内缓存，避免多 worker 之间的配置漂移。
type ConfigStore struct {
	db *gorm.DB
}

// NewConfigStore 创建配置存储
func NewConfigStore(db *gorm.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

// Get 读取租户配置，不存在时返回 nil（而不是错误）
func (s *ConfigStore) Get(ctx context.Context, tenantID string) (*TenantAiConfig, error) {
	var cfg TenantAiConfig
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取租户 AI 配置失败: %w", err)
	}
	return &cfg, nil
}

// ConfigUpdate 配置更新请求
// Credential 为明文凭证；nil 表示保持不变，空串表示清除
type ConfigUpdate struct {
	Provider           Provider
	Enabled            bool
	Credential         *string
	DailyDocLimit      int
	MonthlyBudgetCents int
	MaxPagesPerDoc     int
	StoreOutputs       bool
	RedactPII          bool
}

// Upsert 创建或更新租户配置
// 凭证只写不读：明文在这里立即加密，之后任何读取路径都拿不到明文
func (s *ConfigStore) Upsert(ctx context.Context, tenantID string, update ConfigUpdate) (*TenantAiConfig, error) {
	if !update.Provider.Valid() {
		return nil, fmt.Errorf("提供方取值非法: %q", update.Provider)
	}
	if update.DailyDocLimit < 0 || update.MonthlyBudgetCents < 0 || update.MaxPagesPerDoc < 0 {
		return nil, fmt.Errorf("限额配置不能为负数")
	}

	cfg, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &TenantAiConfig{
			ID:       uuid.New().String(),
			TenantID: tenantID,
		}
	}

	cfg.Provider = update.Provider
	cfg.Enabled = update.Enabled
	cfg.DailyDocLimit = update.DailyDocLimit
	cfg.MonthlyBudgetCents = update.MonthlyBudgetCents
	cfg.MaxPagesPerDoc = update.MaxPagesPerDoc
	cfg.StoreOutputs = update.StoreOutputs
	cfg.RedactPII = update.RedactPII

	if update.Credential != nil {
		if *update.Credential == "" {
			cfg.Credential = nil
		} else {
			encrypted, err := security.EncryptSecret(*update.Credential)
			if err != nil {
				return nil, fmt.Errorf("加密凭证失败: %w", err)
			}
			cfg.Credential = encrypted
		}
	}

	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return nil, fmt.Errorf("保存租户 AI 配置失败: %w", err)
	}
	return cfg, nil
}
