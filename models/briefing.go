package models

import "time"

// Briefing is the daily record for one project and one calendar date.
// Dates travel as "YYYY-MM-DD" strings end to end and are rendered to the
// UK form only at the API boundary.
type Briefing struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   uint      `gorm:"index;not null;uniqueIndex:idx_briefings_project_date" json:"project_id"`
	Date        string    `gorm:"size:10;not null;uniqueIndex:idx_briefings_project_date" json:"date"`
	Overview    string    `gorm:"type:text" json:"overview"`
	SafetyInfo  string    `gorm:"column:safety_info;type:text" json:"safety_info"`
	UpdatedBy   string    `gorm:"size:100" json:"updated_by"`
	LastUpdated time.Time `gorm:"column:last_updated" json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}
