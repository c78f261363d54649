// models/user.go
package models

import "time"

// User id 1 is the seeded system administrator and is protected from
// deletion, deactivation and demotion in the admin handlers.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:150;uniqueIndex;not null" json:"email"`
	Role         string    `gorm:"size:10;default:'user'" json:"role"` // user | manager | admin
	ProjectID    uint      `gorm:"index;not null" json:"project_id"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsSystemAdmin reports whether this is the protected seed account.
func (u *User) IsSystemAdmin() bool { return u.ID == 1 }
