package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is the database audit trail behind the admin log panel.
// One row per mutating action; the per-endpoint text log files carry the
// full request trace.
type ActivityLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ProjectID uint           `gorm:"index" json:"project_id"`
	Username  string         `gorm:"size:100" json:"username"`
	Endpoint  string         `gorm:"size:50;index" json:"endpoint"`
	Action    string         `gorm:"size:20" json:"action"`
	EntityID  uint           `gorm:"column:entity_id" json:"entity_id"`
	Details   datatypes.JSON `gorm:"column:details" json:"details,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_log" }
