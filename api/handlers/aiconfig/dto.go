package aiconfig

import "docuflow/internal/aipipeline"

// UpdateConfigRequest 更新租户 AI 配置请求
// credential 为明文凭证：省略表示保持现状，空串表示清除
type UpdateConfigRequest struct {
	Provider           string  `json:"provider" binding:"required,oneof=openai gemini none"`
	Enabled            bool    `json:"enabled"`
	Credential         *string `json:"credential"`
	DailyDocLimit      int     `json:"dailyDocLimit" binding:"min=0"`
	MonthlyBudgetCents int     `json:"monthlyBudgetCents" binding:"min=0"`
	MaxPagesPerDoc     int     `json:"maxPagesPerDoc" binding:"min=0"`
	StoreOutputs       bool    `json:"storeOutputs"`
	RedactPII          bool    `json:"redactPii"`
}

// ConfigResponse 租户 AI 配置响应
// 凭证永不回显，只暴露是否已设置
type ConfigResponse struct {
	Provider           string `json:"provider"`
	Enabled            bool   `json:"enabled"`
	CredentialSet      bool   `json:"credentialSet"`
	DailyDocLimit      int    `json:"dailyDocLimit"`
	MonthlyBudgetCents int    `json:"monthlyBudgetCents"`
	MaxPagesPerDoc     int    `json:"maxPagesPerDoc"`
	StoreOutputs       bool   `json:"storeOutputs"`
	RedactPII          bool   `json:"redactPii"`
}

// toConfigResponse 将存储模型转换为响应
// cfg 为 nil 时返回未启用的默认配置
func toConfigResponse(cfg *aipipeline.TenantAiConfig) ConfigResponse {
	if cfg == nil {
		return ConfigResponse{
			Provider:     string(aipipeline.ProviderNone),
			StoreOutputs: true,
		}
	}
	return ConfigResponse{
		Provider:           string(cfg.Provider),
		Enabled:            cfg.Enabled,
		CredentialSet:      len(cfg.Credential) > 0,
		DailyDocLimit:      cfg.DailyDocLimit,
		MonthlyBudgetCents: cfg.MonthlyBudgetCents,
		MaxPagesPerDoc:     cfg.MaxPagesPerDoc,
		StoreOutputs:       cfg.StoreOutputs,
		RedactPII:          cfg.RedactPII,
	}
}
