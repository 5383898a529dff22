package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"docuflow/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// RunExecutor 执行一条 AI 运行的接口，由 aipipeline.Executor 实现
type RunExecutor interface {
	Execute(ctx context.Context, runID string) error
}

// OutputPurger 清理过期产出的接口，由 aipipeline.RetentionService 实现
type OutputPurger interface {
	PurgeExpiredOutputs(ctx context.Context) (int64, error)
}

// AiHandler AI 流水线任务处理器
type AiHandler struct {
	executor RunExecutor
	purger   OutputPurger
	logger   *zap.Logger
}

// NewAiHandler 创建处理器
func NewAiHandler(executor RunExecutor, purger OutputPurger, logger *zap.Logger) *AiHandler {
	return &AiHandler{
		executor: executor,
		purger:   purger,
		logger:   logger,
	}
}

// HandleExecuteRun 执行一条 queued 运行
// 运行级别的失败（守卫拦截、提供方错误）在 Executor 内部收敛为终态，
// 这里返回的 error 只代表基础设施故障，交给 asynq 重试
func (h *AiHandler) HandleExecuteRun(ctx context.Context, t *asynq.Task) error {
	var p tasks.ExecuteAiRunPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	h.logger.Info("开始执行 AI 运行", zap.String("run_id", p.RunID))

	if err := h.executor.Execute(ctx, p.RunID); err != nil {
		h.logger.Error("AI 运行执行失败", zap.String("run_id", p.RunID), zap.Error(err))
		return err
	}

	return nil
}

// HandlePurgeOutputs 周期清理保留期外的产出
func (h *AiHandler) HandlePurgeOutputs(ctx context.Context, _ *asynq.Task) error {
	count, err := h.purger.PurgeExpiredOutputs(ctx)
	if err != nil {
		h.logger.Error("清理过期产出失败", zap.Error(err))
		return err
	}
	h.logger.Info("产出清理完成", zap.Int64("count", count))
	return nil
}
