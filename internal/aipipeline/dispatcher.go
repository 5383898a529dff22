package aipipeline

import (
	"context"
	"fmt"

	"docuflow/internal/infra/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VersionCreatedEvent 文档版本定稿事件
// 由门户侧在版本内容定稿后发出，是流水线的唯一入口事件。
type VersionCreatedEvent struct {
	DocumentVersionID string `json:"document_version_id"`
	DocumentID        string `json:"document_id"`
	TenantID          string `json:"tenant_id"`
	Text              string `json:"text"`
	PageCount         int    `json:"page_count"`
	TriggeredBy       string `json:"triggered_by"` // 用户 ID，系统触发时为 system
}

// Dispatcher 流水线派发器
// 响应版本定稿事件：为租户配置要跑的每个任务创建一条 queued 运行并投递
// 异步执行请求。只入队不执行，永不阻塞触发方的事务；这一步不做去重，
// 去重由执行器针对既有成功运行判定。
type Dispatcher struct {
	db            *gorm.DB
	configs       *ConfigStore
	queue         queue.Client
	promptVersion string
	logger        *zap.Logger
}

// NewDispatcher 创建派发器
func NewDispatcher(db *gorm.DB, configs *ConfigStore, q queue.Client, promptVersion string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if promptVersion == "" {
		promptVersion = "v1"
	}
	return &Dispatcher{
		db:            db,
		configs:       configs,
		queue:         q,
		promptVersion: promptVersion,
		logger:        logger,
	}
}

// OnVersionCreated 处理版本定稿事件，纯 fire-and-forget
// 目前租户默认配置的任务只有 summarize；classify 通过手动触发进入。
func (d *Dispatcher) OnVersionCreated(ctx context.Context, event VersionCreatedEvent) {
	log := d.logger.With(
		zap.String("tenant_id", event.TenantID),
		zap.String("document_version_id", event.DocumentVersionID),
	)

	cfg, err := d.configs.Get(ctx, event.TenantID)
	if err != nil {
		log.Error("读取租户 AI 配置失败", zap.Error(err))
		return
	}
	if !cfg.Active() {
		log.Debug("租户未启用 AI，忽略事件")
		return
	}

	// 页数上限在派发时拦截：超限的文档连运行记录都不创建
	if cfg.MaxPagesPerDoc > 0 && event.PageCount > cfg.MaxPagesPerDoc {
		log.Info("文档页数超过租户上限，不派发",
			zap.Int("page_count", event.PageCount),
			zap.Int("max_pages", cfg.MaxPagesPerDoc),
		)
		return
	}

	for _, task := range []Task{TaskSummarize} {
		if _, err := d.DispatchRun(ctx, cfg, event, task); err != nil {
			log.Error("派发运行失败", zap.String("task", string(task)), zap.Error(err))
		}
	}
}

// DispatchRun 为一个任务创建 queued 运行并入队
// 手动触发（regenerate）也走这里，保证所有运行的创建路径一致。
func (d *Dispatcher) DispatchRun(ctx context.Context, cfg *TenantAiConfig, event VersionCreatedEvent, task Task) (*AiRun, error) {
	text := event.Text
	if cfg.RedactPII {
		// input_hash 对脱敏后的正文计算，与实际外发内容保持一致
		text = RedactPII(text)
	}

	triggeredBy := event.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = TriggeredBySystem
	}

	run := &AiRun{
		ID:                uuid.New().String(),
		TenantID:          event.TenantID,
		DocumentID:        event.DocumentID,
		DocumentVersionID: event.DocumentVersionID,
		Task:              task,
		Provider:          cfg.Provider,
		Status:            StatusQueued,
		InputHash:         InputHash(task, d.promptVersion, text),
		PromptVersion:     d.promptVersion,
		TriggeredBy:       triggeredBy,
	}

	if err := d.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("创建运行记录失败: %w", err)
	}

	if err := d.queue.EnqueueExecuteRun(run.ID); err != nil {
		// 运行已落库，入队失败只记录；运维可通过重新入队恢复
		d.logger.Error("任务入队失败",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
		return run, fmt.Errorf("任务入队失败: %w", err)
	}

	d.logger.Info("运行已派发",
		zap.String("run_id", run.ID),
		zap.String("task", string(task)),
		zap.String("tenant_id", event.TenantID),
	)
	return run, nil
}
