package aipipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"docuflow/internal/common"

	"gorm.io/datatypes"
)

// ============================================================================
// 枚举定义
// ============================================================================

// Provider AI 提供方
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderNone   Provider = "none"
)

// Valid 判断提供方取值是否合法
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderGemini, ProviderNone:
		return true
	}
	return false
}

// Task 流水线支持的 AI 任务
type Task string

const (
	TaskSummarize Task = "summarize"
	TaskClassify  Task = "classify"
)

// ParseTask 解析任务名，未知任务返回错误
func ParseTask(s string) (Task, error) {
	switch Task(s) {
	case TaskSummarize, TaskClassify:
		return Task(s), nil
	}
	return "", fmt.Errorf("未知的 AI 任务: %q", s)
}

// RunStatus 运行状态
// queued 为初始态，success/failed/skipped 为终态，只允许一次状态跃迁
type RunStatus string

const (
	StatusQueued  RunStatus = "queued"
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
	StatusSkipped RunStatus = "skipped"
)

// Terminal 是否为终态
func (s RunStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusSkipped
}

// TriggerSource 触发来源
const (
	TriggeredBySystem = "system"
)

// ============================================================================
// 数据模型
// ============================================================================

// TenantAiConfig 租户级 AI 配置，每个租户一行
// 凭证字段加密存储，接口层永不回显。配置只会被禁用，不会被删除。
type TenantAiConfig struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID string `json:"tenantId" gorm:"type:uuid;not null;uniqueIndex"`

	Provider Provider `json:"provider" gorm:"size:20;not null;default:none"`
	Enabled  bool     `json:"enabled" gorm:"not null;default:false"`

	// AES-GCM 加密后的 API 凭证，写入后只写不读
	Credential []byte `json:"-" gorm:"type:bytea"`

	DailyDocLimit      int  `json:"dailyDocLimit" gorm:"not null;default:0"`
	MonthlyBudgetCents int  `json:"monthlyBudgetCents" gorm:"not null;default:0"` // 0 表示不限
	MaxPagesPerDoc     int  `json:"maxPagesPerDoc" gorm:"not null;default:0"`     // 0 表示不限
	StoreOutputs       bool `json:"storeOutputs" gorm:"not null;default:true"`
	RedactPII          bool `json:"redactPii" gorm:"not null;default:false"`

	common.TimestampModel
}

// TableName 指定表名
func (TenantAiConfig) TableName() string {
	return "tenant_ai_configs"
}

// Active 配置是否允许流水线继续
func (c *TenantAiConfig) Active() bool {
	return c != nil && c.Enabled && c.Provider != ProviderNone && c.Provider != ""
}

// AiRun AI 运行记录，每个 (文档版本, 任务) 的一次尝试
// 由 Dispatcher 以 queued 创建，由 Executor 一次性跃迁到终态，此后不可变。
// 重试/重新生成永远创建新记录，不复用旧记录。
type AiRun struct {
	ID                string `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID          string `json:"tenantId" gorm:"type:uuid;not null;index:idx_ai_runs_tenant_status"`
	DocumentID        string `json:"documentId" gorm:"type:uuid;not null;index"`
	DocumentVersionID string `json:"documentVersionId" gorm:"type:uuid;not null;index:idx_ai_runs_version_task"`

	Task     Task      `json:"task" gorm:"size:50;not null;index:idx_ai_runs_version_task"`
	Provider Provider  `json:"provider" gorm:"size:20;not null"`
	Model    string    `json:"model" gorm:"size:100"`
	Status   RunStatus `json:"status" gorm:"size:20;not null;default:queued;index:idx_ai_runs_tenant_status"`

	InputHash     string `json:"inputHash" gorm:"size:64;not null;index"`
	PromptVersion string `json:"promptVersion" gorm:"size:20;not null"`

	CostCents    int    `json:"costCents" gorm:"not null;default:0"`
	ErrorMessage string `json:"errorMessage" gorm:"type:text"`
	TriggeredBy  string `json:"triggeredBy" gorm:"size:100;not null;default:system"`

	CompletedAt *time.Time `json:"completedAt"`
	common.TimestampModel
}

// TableName 指定表名
func (AiRun) TableName() string {
	return "ai_runs"
}

// AiOutput AI 产出，与成功的运行一一对应
// 仅在 run 为 success 时创建；AI 产出字段创建后不再修改，
// 后续只允许向 Confidence 中的 feedback 列表追加用户反馈。
type AiOutput struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	RunID    string `json:"runId" gorm:"type:uuid;not null;uniqueIndex"`
	TenantID string `json:"tenantId" gorm:"type:uuid;not null;index"`

	Summary           string         `json:"summary" gorm:"type:text"`
	SuggestedTags     datatypes.JSON `json:"suggestedTags" gorm:"type:jsonb"`     // []string
	SuggestedCategory string         `json:"suggestedCategory" gorm:"size:200"`
	Entities          datatypes.JSON `json:"entities" gorm:"type:jsonb"`          // []Entity
	Confidence        datatypes.JSON `json:"confidence" gorm:"type:jsonb"`        // map[指标]分值 + feedback 列表

	common.TimestampModel
}

// TableName 指定表名
func (AiOutput) TableName() string {
	return "ai_outputs"
}

// FeedbackEntry 用户反馈条目，追加到产出 Confidence 的 feedback 列表
type FeedbackEntry struct {
	UserID    string    `json:"user_id"`
	Verdict   string    `json:"verdict"` // incorrect 等
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ============================================================================
// 内容指纹
// ============================================================================

// InputHash 计算提交给提供方的内容指纹
// 对 (任务, 提示词版本, 脱敏后的正文) 做 SHA-256，同一版本内容对同一
// 任务永远得到相同指纹。
func InputHash(task Task, promptVersion, text string) string {
	h := sha256.New()
	h.Write([]byte(string(task)))
	h.Write([]byte{0})
	h.Write([]byte(promptVersion))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
