package airuns

import (
	"errors"

	"docuflow/internal/aipipeline"
	"docuflow/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler AI 运行与手动操作处理器
type Handler struct {
	service *aipipeline.Service
}

// NewHandler 创建运行处理器
func NewHandler(service *aipipeline.Service) *Handler {
	return &Handler{service: service}
}

// List 列出文档的 AI 运行记录（按创建时间倒序）
func (h *Handler) List(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	documentID := c.Param("id")

	var page common.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	runs, total, err := h.service.ListRuns(c.Request.Context(), tenantID, documentID, page)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, "查询运行记录失败")
		return
	}

	common.ResponseList(c, runs, total, &page)
}

// GetOutput 查询某次成功运行的产出
func (h *Handler) GetOutput(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	runID := c.Param("id")

	output, err := h.service.GetOutput(c.Request.Context(), tenantID, runID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	common.ResponseSuccess(c, output)
}

// Regenerate 对某个文档版本手动重新触发 AI 任务
// 总是创建一条新运行，不复用历史记录；排队成功返回 202
func (h *Handler) Regenerate(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	userID := c.GetString("user_id")
	versionID := c.Param("versionId")

	var req RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}
	task := aipipeline.TaskSummarize
	if req.Task != "" {
		task = aipipeline.Task(req.Task)
	}

	run, err := h.service.Regenerate(c.Request.Context(), tenantID, userID, versionID, task)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	common.ResponseAccepted(c, gin.H{"run_id": run.ID, "status": run.Status})
}

// ApplySuggestions 将最近一次成功运行的建议分类/标签应用到文档
func (h *Handler) ApplySuggestions(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	documentID := c.Param("id")

	doc, err := h.service.ApplySuggestions(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	common.ResponseSuccessMessage(c, "已应用 AI 建议", doc)
}

// MarkIncorrect 标记某次运行的结果有误
// 反馈追加到产出记录上，AI 生成的字段本身保持不变
func (h *Handler) MarkIncorrect(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	userID := c.GetString("user_id")
	runID := c.Param("id")

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	if err := h.service.MarkIncorrect(c.Request.Context(), tenantID, userID, runID, req.Comment); err != nil {
		h.respondServiceError(c, err)
		return
	}

	common.ResponseSuccessMessage(c, "反馈已记录", nil)
}

// respondServiceError 将服务层哨兵错误映射为业务状态码
func (h *Handler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, aipipeline.ErrNotEnabled):
		common.ResponseError(c, common.CodeAiNotEnabled, err.Error())
	case errors.Is(err, aipipeline.ErrVersionNotFound):
		common.ResponseError(c, common.CodeVersionNotFound, err.Error())
	case errors.Is(err, aipipeline.ErrDocumentNotFound):
		common.ResponseError(c, common.CodeDocumentNotFound, err.Error())
	case errors.Is(err, aipipeline.ErrRunNotFound):
		common.ResponseError(c, common.CodeRunNotFound, err.Error())
	case errors.Is(err, aipipeline.ErrNoSuccessfulOutput):
		common.ResponseError(c, common.CodeOutputNotFound, err.Error())
	default:
		common.ResponseError(c, common.CodeInternalError, "操作失败")
	}
}
