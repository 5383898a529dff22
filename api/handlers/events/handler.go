package events

import (
	"docuflow/internal/aipipeline"
	"docuflow/internal/common"

	"github.com/gin-gonic/gin"
)

// VersionCreatedRequest 文档版本定稿事件
// 由文档管理服务在新版本完成文本抽取后投递
type VersionCreatedRequest struct {
	DocumentVersionID string `json:"documentVersionId" binding:"required"`
	DocumentID        string `json:"documentId" binding:"required"`
	TenantID          string `json:"tenantId" binding:"required"`
	Text              string `json:"text"`
	PageCount         int    `json:"pageCount" binding:"min=0"`
	TriggeredBy       string `json:"triggeredBy"`
}

// Handler 内部事件入口
// 只做入参校验和派发，所有判定（租户是否启用、页数上限等）都在派发器里
type Handler struct {
	dispatcher *aipipeline.Dispatcher
}

// NewHandler 创建事件处理器
func NewHandler(dispatcher *aipipeline.Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// VersionCreated 接收版本定稿事件并触发流水线派发
// 永远返回 202：事件被接受不代表会产生运行
func (h *Handler) VersionCreated(c *gin.Context) {
	var req VersionCreatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseError(c, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = aipipeline.TriggeredBySystem
	}

	h.dispatcher.OnVersionCreated(c.Request.Context(), aipipeline.VersionCreatedEvent{
		DocumentVersionID: req.DocumentVersionID,
		DocumentID:        req.DocumentID,
		TenantID:          req.TenantID,
		Text:              req.Text,
		PageCount:         req.PageCount,
		TriggeredBy:       triggeredBy,
	})

	common.ResponseAccepted(c, gin.H{"accepted": true})
}
