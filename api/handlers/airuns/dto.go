package airuns

// RegenerateRequest 手动重新生成请求
type RegenerateRequest struct {
	Task string `json:"task" binding:"omitempty,oneof=summarize classify"`
}

// FeedbackRequest 标记结果有误请求
type FeedbackRequest struct {
	Comment string `json:"comment" binding:"max=2000"`
}
