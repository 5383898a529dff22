package api

import (
	"docuflow/internal/logger"
	middlewarepkg "docuflow/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, c *AppContainer, h *Handlers) {
	// 内部事件入口：由文档管理服务调用，不走租户头校验
	internal := router.Group("/internal")
	{
		internal.POST("/events/version-created", h.Events.VersionCreated)
	}

	// 版本化 API 组：身份由上游网关注入
	apiV1 := router.Group("/api/v1")
	apiV1.Use(middlewarepkg.TenantContextMiddleware(logger.Get()))
	registerAiRoutes(apiV1, c, h)
}

// registerAiRoutes 注册 AI 流水线相关路由
func registerAiRoutes(apiGroup *gin.RouterGroup, c *AppContainer, h *Handlers) {
	// 租户配置
	cfgGroup := apiGroup.Group("/ai/config")
	{
		cfgGroup.GET("", h.Config.Get)
		cfgGroup.PUT("", h.Config.Update)
	}

	// 手动操作逐个限流，防止滥用异步流水线
	regenerateGuard := middlewarepkg.RateLimitAction(c.RateLimiter, "regenerate")
	applyGuard := middlewarepkg.RateLimitAction(c.RateLimiter, "apply_suggestions")
	feedbackGuard := middlewarepkg.RateLimitAction(c.RateLimiter, "mark_incorrect")

	docGroup := apiGroup.Group("/documents")
	{
		docGroup.GET("/:id/ai/runs", h.Runs.List)
		docGroup.POST("/:id/ai/apply-suggestions", applyGuard, h.Runs.ApplySuggestions)
		docGroup.POST("/:id/versions/:versionId/ai/regenerate", regenerateGuard, h.Runs.Regenerate)
	}

	runGroup := apiGroup.Group("/ai/runs")
	{
		runGroup.GET("/:id/output", h.Runs.GetOutput)
		runGroup.POST("/:id/feedback", feedbackGuard, h.Runs.MarkIncorrect)
	}
}
