package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"docuflow/internal/aipipeline"
)

// 发送给提供方的指令，要求严格 JSON 输出，便于两个提供方共用同一套解析
const (
	summarizePrompt = `You are a document analysis assistant for a document management system.
Analyze the document text and respond with a single JSON object, no markdown fences:
{"summary": "...", "suggested_tags": ["..."], "suggested_category": "...", "entities": [{"type": "...", "value": "..."}], "confidence": {"summary_quality": 0.0, "tag_relevance": 0.0}}
Write the summary in the same language as the document. Keep it under 200 words.`

	classifyPrompt = `You are a document classification assistant for a document management system.
Analyze the document text and respond with a single JSON object, no markdown fences:
{"suggested_tags": ["..."], "suggested_category": "...", "entities": [{"type": "...", "value": "..."}], "confidence": {"classification": 0.0}}
Tags and category must be in the same language as the document.`
)

func promptFor(task aipipeline.Task) string {
	if task == aipipeline.TaskClassify {
		return classifyPrompt
	}
	return summarizePrompt
}

// providerPayload 两个提供方共用的响应载荷
type providerPayload struct {
	Summary           string             `json:"summary"`
	SuggestedTags     []string           `json:"suggested_tags"`
	SuggestedCategory string             `json:"suggested_category"`
	Entities          []aipipeline.Entity           `json:"entities"`
	Confidence        map[string]float64 `json:"confidence"`
}

// parsePayload 解析提供方返回的 JSON
// 模型偶尔会包一层 markdown 代码块，先剥掉再解析
func parsePayload(raw string) (*providerPayload, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload providerPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("解析提供方响应失败: %w", err)
	}
	return &payload, nil
}

func (p *providerPayload) toResult(model string, costCents int) *aipipeline.Result {
	return &aipipeline.Result{
		Model:             model,
		Summary:           p.Summary,
		SuggestedTags:     p.SuggestedTags,
		SuggestedCategory: p.SuggestedCategory,
		Entities:          p.Entities,
		Confidence:        p.Confidence,
		CostCents:         costCents,
	}
}
