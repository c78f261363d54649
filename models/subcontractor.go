package models

import "time"

// Subcontractor is a trade company attached to a project. Contacts live in
// their own child table, ordered by position; task notes are day-scoped and
// replaced wholesale for "today" on every update.
type Subcontractor struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"index;not null" json:"project_id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	Trade     string    `gorm:"size:100" json:"trade"`
	Status    string    `gorm:"size:10;default:'Active'" json:"status"` // Active | Standby | Delayed | Complete | Offsite
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Contacts []SubcontractorContact `gorm:"foreignKey:SubcontractorID" json:"contacts,omitempty"`
}

func (Subcontractor) TableName() string { return "dabs_subcontractors" }

type SubcontractorContact struct {
	ID              uint   `gorm:"primaryKey" json:"-"`
	SubcontractorID uint   `gorm:"index;not null" json:"-"`
	Position        int    `gorm:"not null;default:0" json:"-"`
	Name            string `gorm:"size:150" json:"name"`
	Phone           string `gorm:"size:30" json:"phone"`
	Email           string `gorm:"size:150" json:"email"`
}

func (SubcontractorContact) TableName() string { return "dabs_subcontractor_contacts" }

type SubcontractorTask struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SubcontractorID uint      `gorm:"index;not null" json:"subcontractor_id"`
	TaskDate        string    `gorm:"column:task_date;size:10;index;not null" json:"task_date"`
	TaskDescription string    `gorm:"column:task_description;type:text;not null" json:"task_description"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SubcontractorTask) TableName() string { return "dabs_subcontractor_tasks" }
