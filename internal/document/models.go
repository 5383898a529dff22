package document

import (
	"docuflow/internal/common"

	"gorm.io/datatypes"
)

// Document 文档主记录
// 文档的 CRUD、审批流转由门户侧维护；流水线只读取文档并在“应用建议”时
// 回写分类与标签。
type Document struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID string `json:"tenantId" gorm:"type:uuid;not null;index"`

	Title    string         `json:"title" gorm:"size:500;not null"`
	Category string         `json:"category" gorm:"size:200"`
	Tags     datatypes.JSON `json:"tags" gorm:"type:jsonb"` // []string

	common.TimestampModel
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}

// DocumentVersion 文档版本
// 每次内容定稿产生一条新版本记录，携带 OCR/解析后的全文。版本内容不可变。
type DocumentVersion struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID   string `json:"tenantId" gorm:"type:uuid;not null;index"`
	DocumentID string `json:"documentId" gorm:"type:uuid;not null;index"`

	VersionNumber int    `json:"versionNumber" gorm:"not null"`
	ExtractedText string `json:"-" gorm:"type:text"`
	PageCount     int    `json:"pageCount" gorm:"default:0"`

	common.TimestampModel
}

// TableName 指定表名
func (DocumentVersion) TableName() string {
	return "document_versions"
}
