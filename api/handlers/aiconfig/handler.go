package aiconfig

import (
	"docuflow/internal/aipipeline"
	"docuflow/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler 租户 AI 配置处理器
type Handler struct {
	configs *aipipeline.ConfigStore
}

// NewHandler 创建配置处理器
func NewHandler(configs *aipipeline.ConfigStore) *Handler {
	return &Handler{configs: configs}
}

// Get 查询当前租户的 AI 配置
// 从未配置过的租户返回未启用的默认值，而不是 404
func (h *Handler) Get(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	cfg, err := h.configs.Get(c.Request.Context(), tenantID)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, "查询 AI 配置失败")
		return
	}

	common.ResponseSuccess(c, toConfigResponse(cfg))
}

// Update 创建或更新当前租户的 AI 配置
func (h *Handler) Update(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	cfg, err := h.configs.Upsert(c.Request.Context(), tenantID, aipipeline.ConfigUpdate{
		Provider:           aipipeline.Provider(req.Provider),
		Enabled:            req.Enabled,
		Credential:         req.Credential,
		DailyDocLimit:      req.DailyDocLimit,
		MonthlyBudgetCents: req.MonthlyBudgetCents,
		MaxPagesPerDoc:     req.MaxPagesPerDoc,
		StoreOutputs:       req.StoreOutputs,
		RedactPII:          req.RedactPII,
	})
	if err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, err.Error())
		return
	}

	common.ResponseSuccessMessage(c, "AI 配置已更新", toConfigResponse(cfg))
}
