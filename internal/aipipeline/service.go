package aipipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docuflow/internal/common"
	"docuflow/internal/document"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 手动操作错误
var (
	// ErrNotEnabled 租户未启用 AI，同步抛给手动触发的调用方
	ErrNotEnabled = errors.New("IA no habilitada para este tenant")

	// ErrVersionNotFound 文档版本不存在或不属于该租户
	ErrVersionNotFound = errors.New("la versión del documento no existe")

	// ErrDocumentNotFound 文档不存在或不属于该租户
	ErrDocumentNotFound = errors.New("el documento no existe")

	// ErrRunNotFound 运行记录不存在或不属于该租户
	ErrRunNotFound = errors.New("la ejecución no existe")

	// ErrNoSuccessfulOutput 没有可用的成功产出
	ErrNoSuccessfulOutput = errors.New("no hay resultados de IA disponibles para aplicar")
)

// Service 面向操作员/终端用户的手动触发面
// regenerate 创建全新的 queued 运行并重新入队（永不改写旧运行的状态）；
// apply 把最新成功产出的建议分类/标签回写到文档；mark-incorrect 向产出
// 的 confidence 追加一条反馈。限流在 HTTP 中间件层完成。
type Service struct {
	db         *gorm.DB
	configs    *ConfigStore
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewService 创建服务
func NewService(db *gorm.DB, configs *ConfigStore, dispatcher *Dispatcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         db,
		configs:    configs,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Regenerate 为指定版本重新生成：创建新 queued 运行并投递
// 旧运行保持不可变，重试永远是新记录
func (s *Service) Regenerate(ctx context.Context, tenantID, userID, versionID string, task Task) (*AiRun, error) {
	cfg, err := s.configs.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !cfg.Active() {
		return nil, ErrNotEnabled
	}

	var version document.DocumentVersion
	err = s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", versionID, tenantID).
		First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("加载文档版本失败: %w", err)
	}

	event := VersionCreatedEvent{
		DocumentVersionID: version.ID,
		DocumentID:        version.DocumentID,
		TenantID:          tenantID,
		Text:              version.ExtractedText,
		PageCount:         version.PageCount,
		TriggeredBy:       userID,
	}
	return s.dispatcher.DispatchRun(ctx, cfg, event, task)
}

// ApplySuggestions 把文档最新成功产出的建议分类与标签回写到文档
func (s *Service) ApplySuggestions(ctx context.Context, tenantID, documentID string) (*document.Document, error) {
	var doc document.Document
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", documentID, tenantID).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("加载文档失败: %w", err)
	}

	output, err := s.latestSuccessfulOutput(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if output.SuggestedCategory != "" {
		updates["category"] = output.SuggestedCategory
	}
	if len(output.SuggestedTags) > 0 {
		updates["tags"] = output.SuggestedTags
	}
	if len(updates) == 0 {
		return &doc, nil
	}

	if err := s.db.WithContext(ctx).Model(&doc).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("回写文档建议失败: %w", err)
	}

	s.logger.Info("已应用 AI 建议",
		zap.String("tenant_id", tenantID),
		zap.String("document_id", documentID),
	)
	return &doc, nil
}

// MarkIncorrect 向产出的 confidence 追加一条用户反馈
// 只追加，永不修改 AI 生成的原始字段
func (s *Service) MarkIncorrect(ctx context.Context, tenantID, userID, runID, comment string) error {
	var output AiOutput
	err := s.db.WithContext(ctx).
		Where("run_id = ? AND tenant_id = ?", runID, tenantID).
		First(&output).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("加载产出失败: %w", err)
	}

	confidence := map[string]json.RawMessage{}
	if len(output.Confidence) > 0 {
		if err := json.Unmarshal(output.Confidence, &confidence); err != nil {
			confidence = map[string]json.RawMessage{}
		}
	}

	var feedback []FeedbackEntry
	if raw, ok := confidence["feedback"]; ok {
		_ = json.Unmarshal(raw, &feedback)
	}
	feedback = append(feedback, FeedbackEntry{
		UserID:    userID,
		Verdict:   "incorrect",
		Comment:   comment,
		CreatedAt: time.Now(),
	})

	feedbackJSON, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("序列化反馈失败: %w", err)
	}
	confidence["feedback"] = feedbackJSON

	confidenceJSON, err := json.Marshal(confidence)
	if err != nil {
		return fmt.Errorf("序列化 confidence 失败: %w", err)
	}

	err = s.db.WithContext(ctx).
		Model(&AiOutput{}).
		Where("id = ?", output.ID).
		Update("confidence", datatypes.JSON(confidenceJSON)).Error
	if err != nil {
		return fmt.Errorf("保存反馈失败: %w", err)
	}
	return nil
}

// ListRuns 分页列出某文档的运行记录（AI 面板用）
func (s *Service) ListRuns(ctx context.Context, tenantID, documentID string, page common.PaginationRequest) ([]AiRun, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&AiRun{}).
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计运行记录失败: %w", err)
	}

	var runs []AiRun
	err := query.
		Order("created_at DESC").
		Offset(page.GetOffset()).
		Limit(page.GetPageSize()).
		Find(&runs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询运行记录失败: %w", err)
	}
	return runs, total, nil
}

// GetOutput 读取某条运行的产出
func (s *Service) GetOutput(ctx context.Context, tenantID, runID string) (*AiOutput, error) {
	var output AiOutput
	err := s.db.WithContext(ctx).
		Where("run_id = ? AND tenant_id = ?", runID, tenantID).
		First(&output).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("加载产出失败: %w", err)
	}
	return &output, nil
}

// latestSuccessfulOutput 文档最近一次成功运行的产出
func (s *Service) latestSuccessfulOutput(ctx context.Context, tenantID, documentID string) (*AiOutput, error) {
	var run AiRun
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ? AND status = ?", tenantID, documentID, StatusSuccess).
		Order("created_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSuccessfulOutput
	}
	if err != nil {
		return nil, fmt.Errorf("查询成功运行失败: %w", err)
	}

	var output AiOutput
	err = s.db.WithContext(ctx).
		Where("run_id = ?", run.ID).
		First(&output).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSuccessfulOutput
	}
	if err != nil {
		return nil, fmt.Errorf("加载产出失败: %w", err)
	}

	return &output, nil
}
