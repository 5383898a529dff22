package tenant

import "time"

// Tenant represents a logical tenant (company) in the system. All tenant-scoped data
// should reference TenantID to ensure proper isolation. CRUD on tenants belongs to the
// surrounding portal; the pipeline only reads this record.
type Tenant struct {
	ID     string `json:"id" gorm:"primaryKey;type:uuid"`
	Name   string `json:"name" gorm:"size:255;not null"`
	Slug   string `json:"slug" gorm:"size:100;uniqueIndex;not null"`
	Status string `json:"status" gorm:"size:50;not null;default:active"`

	// 时间戳
	CreatedAt time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" gorm:"index"`
}

// TableName 指定表名
func (Tenant) TableName() string {
	return "tenants"
}
