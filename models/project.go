package models

import "time"

// Project is the tenant boundary: every briefing, subcontractor and user
// belongs to exactly one project and all queries are scoped by its id.
type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	Code      string    `gorm:"size:30;uniqueIndex;not null" json:"code"`
	Address   string    `gorm:"size:255" json:"address,omitempty"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
