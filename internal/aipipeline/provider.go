package aipipeline

import (
	"context"
	"fmt"
)

// Result 提供方返回的结构化结果
type Result struct {
	Provider          Provider           `json:"provider"`
	Model             string             `json:"model"`
	Summary           string             `json:"summary,omitempty"`
	SuggestedTags     []string           `json:"suggested_tags,omitempty"`
	SuggestedCategory string             `json:"suggested_category,omitempty"`
	Entities          []Entity           `json:"entities,omitempty"`
	Confidence        map[string]float64 `json:"confidence,omitempty"`
	CostCents         int                `json:"cost_cents"`
}

// Entity 从文本中识别出的实体
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Gateway 对具体 AI 提供方的抽象，由 aipipeline/gateway 实现
// 提供方选择是租户配置的纯函数，调用方不能覆盖。
type Gateway interface {
	Summarize(ctx context.Context, cfg *TenantAiConfig, text string) (*Result, error)
	Classify(ctx context.Context, cfg *TenantAiConfig, text string) (*Result, error)
}

// NotEnabledError 配置错误：租户未启用 AI
// 与流水线的 skipped 不同，这是同步抛给直接调用方的错误，
// 表示调用方本不应该发起这次调用。
type NotEnabledError struct {
	TenantID string
	Reason   string
}

func (e *NotEnabledError) Error() string {
	return fmt.Sprintf("IA no habilitada para el tenant %s: %s", e.TenantID, e.Reason)
}
