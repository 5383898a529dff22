package gateway

import (
	"context"
	"fmt"
	"time"

	"docuflow/internal/aipipeline"
	"docuflow/internal/metrics"
	"docuflow/internal/security"
)

// providerClient 单个提供方的调用接口
type providerClient interface {
	invoke(ctx context.Context, task aipipeline.Task, text string) (*aipipeline.Result, error)
}

// providerGateway aipipeline.Gateway 的标准实现
type providerGateway struct{}

// New 创建 Gateway
func New() aipipeline.Gateway {
	return &providerGateway{}
}

func (g *providerGateway) Summarize(ctx context.Context, cfg *aipipeline.TenantAiConfig, text string) (*aipipeline.Result, error) {
	return g.run(ctx, cfg, aipipeline.TaskSummarize, text)
}

func (g *providerGateway) Classify(ctx context.Context, cfg *aipipeline.TenantAiConfig, text string) (*aipipeline.Result, error) {
	return g.run(ctx, cfg, aipipeline.TaskClassify, text)
}

func (g *providerGateway) run(ctx context.Context, cfg *aipipeline.TenantAiConfig, task aipipeline.Task, text string) (*aipipeline.Result, error) {
	client, err := g.resolveClient(cfg)
	if err != nil {
		return nil, err
	}

	// 租户开启脱敏时，先清洗再外发
	if cfg.RedactPII {
		text = aipipeline.RedactPII(text)
	}

	start := time.Now()
	result, err := client.invoke(ctx, task, text)
	metrics.AiProviderRequestDuration.
		WithLabelValues(string(cfg.Provider), string(task)).
		Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	result.Provider = cfg.Provider
	return result, nil
}

// resolveClient 防御性地校验租户配置并实例化提供方客户端
// 到达 Executor 的调用被认为已通过前置启用检查，但 Gateway 自身
// 仍强制这条不变量，手动触发等直接调用同样被拦截。
func (g *providerGateway) resolveClient(cfg *aipipeline.TenantAiConfig) (providerClient, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, &aipipeline.NotEnabledError{TenantID: tenantOf(cfg), Reason: "la configuración está deshabilitada"}
	}
	if cfg.Provider == aipipeline.ProviderNone || cfg.Provider == "" {
		return nil, &aipipeline.NotEnabledError{TenantID: cfg.TenantID, Reason: "no hay proveedor configurado"}
	}
	if len(cfg.Credential) == 0 {
		return nil, &aipipeline.NotEnabledError{TenantID: cfg.TenantID, Reason: "falta la credencial del proveedor"}
	}

	apiKey, err := security.DecryptSecret(cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("解密租户凭证失败: %w", err)
	}

	switch cfg.Provider {
	case aipipeline.ProviderOpenAI:
		return newOpenAIClient(apiKey), nil
	case aipipeline.ProviderGemini:
		return newGeminiClient(apiKey), nil
	default:
		return nil, &aipipeline.NotEnabledError{TenantID: cfg.TenantID, Reason: fmt.Sprintf("proveedor desconocido: %s", cfg.Provider)}
	}
}

func tenantOf(cfg *aipipeline.TenantAiConfig) string {
	if cfg == nil {
		return ""
	}
	return cfg.TenantID
}
