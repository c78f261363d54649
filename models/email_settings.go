package models

import (
	"encoding/base64"
	"time"
)

// EmailSettings is the single outbound-mail configuration row. The update
// handler always writes id 1, so the table never grows past one record.
// The SMTP password is stored base64-obscured, not encrypted.
type EmailSettings struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SMTPEnabled    bool      `gorm:"column:smtp_enabled;default:false" json:"smtp_enabled"`
	SMTPHost       string    `gorm:"column:smtp_host;size:150" json:"smtp_host"`
	SMTPPort       int       `gorm:"column:smtp_port;default:587" json:"smtp_port"`
	SMTPEncryption string    `gorm:"column:smtp_encryption;size:10;default:'tls'" json:"smtp_encryption"` // none | tls | ssl
	SMTPAuth       bool      `gorm:"column:smtp_auth;default:true" json:"smtp_auth"`
	SMTPUsername   string    `gorm:"column:smtp_username;size:150" json:"smtp_username"`
	SMTPPassword   string    `gorm:"column:smtp_password;size:255" json:"smtp_password"`
	FromEmail      string    `gorm:"column:from_email;size:150" json:"from_email"`
	FromName       string    `gorm:"column:from_name;size:150" json:"from_name"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (EmailSettings) TableName() string { return "email_settings" }

// ObscurePassword replaces the plain password with its stored form.
func (s *EmailSettings) ObscurePassword(plain string) {
	s.SMTPPassword = base64.StdEncoding.EncodeToString([]byte(plain))
}

// PlainPassword decodes the stored form; a value that was never encoded
// comes back unchanged.
func (s *EmailSettings) PlainPassword() string {
	decoded, err := base64.StdEncoding.DecodeString(s.SMTPPassword)
	if err != nil {
		return s.SMTPPassword
	}
	return string(decoded)
}
