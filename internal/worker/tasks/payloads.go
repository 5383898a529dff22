package tasks

// Task Types
const (
	TypeExecuteAiRun    = "ai:execute_run"
	TypePurgeAiOutputs  = "ai:purge_outputs"
)

// ExecuteAiRunPayload AI 运行执行任务载荷
// 只携带 run_id，其余状态在执行时从存储重新读取，避免使用过期快照
type ExecuteAiRunPayload struct {
	RunID string `json:"run_id"`
}
