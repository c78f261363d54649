package models

import "time"

// Activity is one scheduled unit of work on a day's briefing. Project
// membership is transitive through BriefingID and re-verified in the
// handlers on every get/update/delete.
type Activity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	BriefingID  uint      `gorm:"index;not null" json:"briefing_id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Area        string    `gorm:"size:150" json:"area"`
	Priority    string    `gorm:"size:10;default:'medium'" json:"priority"` // low | medium | high | critical
	LaborCount  int       `gorm:"column:labor_count;default:0" json:"labor_count"`
	Contractors string    `gorm:"size:255" json:"contractors"`
	AssignedTo  string    `gorm:"column:assigned_to;size:150" json:"assigned_to"`
	Time        string    `gorm:"column:time;size:5;default:'08:00'" json:"time"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
