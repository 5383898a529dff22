package aipipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docuflow/internal/document"
	"docuflow/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 守卫拦截原因（用户可见，门户 AI 面板原样展示）
const (
	reasonDailyLimit     = "Omitido: límite diario de documentos alcanzado"
	reasonVersionCache   = "Omitido por cache por versión: ya existe un resultado exitoso para esta versión y tarea"
	reasonMonthlyBudget  = "Omitido: presupuesto mensual agotado"
	reasonCircuitBreaker = "Omitido: Circuit breaker abierto para el proveedor"
)

// 指标里的守卫标签
const (
	guardLabelDailyLimit     = "daily_limit"
	guardLabelVersionCache   = "version_cache"
	guardLabelMonthlyBudget  = "monthly_budget"
	guardLabelCircuitBreaker = "circuit_breaker"
)

// Executor 流水线执行器，异步工作单元
// 拉取一条 queued 运行，按固定顺序评估守卫链（限额 → 版本去重 → 预算 →
// 断路器），全部放行后调用 Gateway，并把运行一次性落到终态。
// 每个守卫都从共享存储重新读取当前状态，不信任派发时的快照，
// 因此同一 run id 的重复投递是安全幂等的。
type Executor struct {
	db      *gorm.DB
	configs *ConfigStore
	quota   *QuotaTracker
	breaker *CircuitBreaker
	gateway Gateway
	logger  *zap.Logger
}

// NewExecutor 创建执行器
func NewExecutor(db *gorm.DB, configs *ConfigStore, quota *QuotaTracker, breaker *CircuitBreaker, gw Gateway, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		db:      db,
		configs: configs,
		quota:   quota,
		breaker: breaker,
		gateway: gw,
		logger:  logger,
	}
}

// Execute 执行一条运行
// 对已处于终态的运行是空操作。守卫拦截与提供方失败都在这里收敛为
// 终态运行记录，不向 worker 进程外抛出；只有基础设施错误（数据库
// 不可用等）作为 error 返回以触发队列重试。
func (e *Executor) Execute(ctx context.Context, runID string) error {
	var run AiRun
	err := e.db.WithContext(ctx).Where("id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		e.logger.Warn("运行记录不存在，忽略", zap.String("run_id", runID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("加载运行记录失败: %w", err)
	}

	// 幂等：重复投递的终态运行直接忽略
	if run.Status != StatusQueued {
		e.logger.Info("运行已处于终态，跳过",
			zap.String("run_id", runID),
			zap.String("status", string(run.Status)),
		)
		return nil
	}

	log := e.logger.With(
		zap.String("run_id", run.ID),
		zap.String("tenant_id", run.TenantID),
		zap.String("task", string(run.Task)),
	)

	cfg, err := e.configs.Get(ctx, run.TenantID)
	if err != nil {
		return err
	}

	// 守卫链。启用状态不在这里判定：到达执行器的调用默认已通过前置
	// 启用检查，Gateway 自身会兜底强制这条不变量。
	if cfg != nil {
		skipped, err := e.applyGuards(ctx, &run, cfg, log)
		if err != nil {
			return err
		}
		if skipped {
			return nil
		}
	}

	return e.invoke(ctx, &run, cfg, log)
}

// applyGuards 按固定顺序评估守卫，第一个命中的守卫把运行落为 skipped
// 顺序不可调整：租户级策略（限额、去重、预算）先于提供方健康策略（断路器）
func (e *Executor) applyGuards(ctx context.Context, run *AiRun, cfg *TenantAiConfig, log *zap.Logger) (bool, error) {
	// 1. 日限额：统计今日 success 运行数
	dailyCount, err := e.quota.DailySuccessCount(ctx, run.TenantID)
	if err != nil {
		return false, err
	}
	if dailyCount >= int64(cfg.DailyDocLimit) {
		reason := fmt.Sprintf("%s (%d/%d)", reasonDailyLimit, dailyCount, cfg.DailyDocLimit)
		return true, e.skip(ctx, run, reason, guardLabelDailyLimit, log)
	}

	// 2. 版本级去重：该版本 + 任务已有成功运行则不再花钱
	// 与 input_hash 是否一致无关，同一版本只成功处理一次
	var dupCount int64
	err = e.db.WithContext(ctx).
		Model(&AiRun{}).
		Where("document_version_id = ? AND task = ? AND status = ?", run.DocumentVersionID, run.Task, StatusSuccess).
		Count(&dupCount).Error
	if err != nil {
		return false, fmt.Errorf("查询版本去重失败: %w", err)
	}
	if dupCount > 0 {
		return true, e.skip(ctx, run, reasonVersionCache, guardLabelVersionCache, log)
	}

	// 3. 月度预算：0 表示不限
	if cfg.MonthlyBudgetCents > 0 {
		spend, err := e.quota.MonthlySpendCents(ctx, run.TenantID)
		if err != nil {
			return false, err
		}
		if spend >= int64(cfg.MonthlyBudgetCents) {
			reason := fmt.Sprintf("%s (%d/%d centavos)", reasonMonthlyBudget, spend, cfg.MonthlyBudgetCents)
			return true, e.skip(ctx, run, reason, guardLabelMonthlyBudget, log)
		}
	}

	// 4. 断路器
	if e.breaker.IsOpen(ctx, run.TenantID, cfg.Provider) {
		reason := fmt.Sprintf("%s %s", reasonCircuitBreaker, cfg.Provider)
		return true, e.skip(ctx, run, reason, guardLabelCircuitBreaker, log)
	}

	return false, nil
}

// invoke 调用 Gateway 并把运行落到 success/failed
func (e *Executor) invoke(ctx context.Context, run *AiRun, cfg *TenantAiConfig, log *zap.Logger) error {
	var version document.DocumentVersion
	err := e.db.WithContext(ctx).Where("id = ?", run.DocumentVersionID).First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return e.fail(ctx, run, fmt.Sprintf("la versión del documento %s no existe", run.DocumentVersionID), log)
	}
	if err != nil {
		return fmt.Errorf("加载文档版本失败: %w", err)
	}

	var result *Result
	switch run.Task {
	case TaskClassify:
		result, err = e.gateway.Classify(ctx, cfg, version.ExtractedText)
	default:
		result, err = e.gateway.Summarize(ctx, cfg, version.ExtractedText)
	}

	if err != nil {
		// 配置错误（未启用/缺凭证）不计入提供方健康度
		var notEnabled *NotEnabledError
		if !errors.As(err, &notEnabled) {
			if berr := e.breaker.RecordFailure(ctx, run.TenantID, providerOf(cfg)); berr != nil {
				log.Warn("更新断路器计数失败", zap.Error(berr))
			}
		}
		log.Warn("提供方调用失败", zap.Error(err))
		return e.fail(ctx, run, err.Error(), log)
	}

	if err := e.succeed(ctx, run, cfg, result, log); err != nil {
		return err
	}

	if err := e.breaker.RecordSuccess(ctx, run.TenantID, providerOf(cfg)); err != nil {
		log.Warn("重置断路器计数失败", zap.Error(err))
	}
	return nil
}

// succeed 在一个事务里持久化产出并把运行落为 success
func (e *Executor) succeed(ctx context.Context, run *AiRun, cfg *TenantAiConfig, result *Result, log *zap.Logger) error {
	tagsJSON, _ := json.Marshal(result.SuggestedTags)
	entitiesJSON, _ := json.Marshal(result.Entities)
	confidenceJSON, _ := json.Marshal(result.Confidence)

	output := &AiOutput{
		ID:                uuid.New().String(),
		RunID:             run.ID,
		TenantID:          run.TenantID,
		Summary:           result.Summary,
		SuggestedTags:     datatypes.JSON(tagsJSON),
		SuggestedCategory: result.SuggestedCategory,
		Entities:          datatypes.JSON(entitiesJSON),
		Confidence:        datatypes.JSON(confidenceJSON),
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := terminalize(tx, run.ID, StatusSuccess, map[string]any{
			"provider":     result.Provider,
			"model":        result.Model,
			"cost_cents":   result.CostCents,
			"completed_at": time.Now(),
		})
		if err != nil {
			return err
		}
		// 并发竞争下另一 worker 已落终态，放弃本次产出
		if !updated {
			return errAlreadyTerminal
		}
		return tx.Create(output).Error
	})
	if errors.Is(err, errAlreadyTerminal) {
		log.Info("运行已被其他 worker 落为终态，丢弃产出")
		return nil
	}
	if err != nil {
		return fmt.Errorf("持久化成功结果失败: %w", err)
	}

	metrics.AiRunsTotal.WithLabelValues(string(run.Task), string(StatusSuccess)).Inc()
	metrics.AiCostCentsTotal.WithLabelValues(run.TenantID, string(result.Provider)).Add(float64(result.CostCents))
	log.Info("运行成功",
		zap.String("provider", string(result.Provider)),
		zap.Int("cost_cents", result.CostCents),
	)
	return nil
}

var errAlreadyTerminal = errors.New("run already terminal")

// skip 把运行落为 skipped 并记录拦截原因
func (e *Executor) skip(ctx context.Context, run *AiRun, reason, guardLabel string, log *zap.Logger) error {
	updated, err := terminalize(e.db.WithContext(ctx), run.ID, StatusSkipped, map[string]any{
		"error_message": reason,
		"completed_at":  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("标记运行为 skipped 失败: %w", err)
	}
	if updated {
		metrics.AiRunsTotal.WithLabelValues(string(run.Task), string(StatusSkipped)).Inc()
		metrics.AiGuardSkipsTotal.WithLabelValues(guardLabel).Inc()
		log.Info("守卫拦截", zap.String("reason", reason))
	}
	return nil
}

// fail 把运行落为 failed 并保存原始错误信息
func (e *Executor) fail(ctx context.Context, run *AiRun, message string, log *zap.Logger) error {
	updated, err := terminalize(e.db.WithContext(ctx), run.ID, StatusFailed, map[string]any{
		"error_message": message,
		"completed_at":  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("标记运行为 failed 失败: %w", err)
	}
	if updated {
		metrics.AiRunsTotal.WithLabelValues(string(run.Task), string(StatusFailed)).Inc()
	}
	return nil
}

// terminalize 带条件的一次性状态跃迁：只允许从 queued 落到终态
// WHERE status = 'queued' 保证即使两个 worker 同时执行，也只有一个能写入
func terminalize(db *gorm.DB, runID string, status RunStatus, fields map[string]any) (bool, error) {
	fields["status"] = status
	result := db.Model(&AiRun{}).
		Where("id = ? AND status = ?", runID, StatusQueued).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func providerOf(cfg *TenantAiConfig) Provider {
	if cfg == nil {
		return ProviderNone
	}
	return cfg.Provider
}
