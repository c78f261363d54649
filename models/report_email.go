package models

import (
	"time"

	"github.com/lib/pq"
)

// ReportEmail records each attempt to email a day report, successful or
// not. Postgres-only table (text[] recipients); it is created by its own
// migration and never touched by the entity endpoints.
type ReportEmail struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ProjectID  uint           `gorm:"index;not null" json:"project_id"`
	ReportDate string         `gorm:"column:report_date;size:10;not null" json:"report_date"`
	Recipients pq.StringArray `gorm:"type:text[]" json:"recipients"`
	Subject    string         `gorm:"size:200" json:"subject"`
	SentBy     string         `gorm:"column:sent_by;size:100" json:"sent_by"`
	Succeeded  bool           `json:"succeeded"`
	Error      string         `gorm:"size:500" json:"error,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (ReportEmail) TableName() string { return "report_emails" }
