package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
	"p9e.in/dabs/config"
	"p9e.in/dabs/middleware"
	"p9e.in/dabs/models"
	"p9e.in/dabs/pkg/logbook"
	"p9e.in/dabs/pkg/mailer"
	"p9e.in/dabs/utils"
)

// EmailSettings serves the admin mail-configuration panel: GET returns the
// singleton row with the password revealed for the form, POST action=update
// rewrites it, POST action=test sends a probe message.
func EmailSettings(w http.ResponseWriter, r *http.Request) {
	s, ok := scopeOf(w, r)
	if !ok {
		return
	}
	if !dbReady(w) {
		return
	}

	action := r.URL.Query().Get("action")
	switch r.Method {
	case http.MethodPost:
		switch action {
		case "", "update":
			updateEmailSettings(w, r, s)
		case "test":
			testEmailSettings(w, r, s)
		default:
			endpointFail(w, s, "admin", "invalid_action",
				faultBad(utils.CodeInvalidAction, "Unknown action: "+action), "action", action)
		}
	default:
		switch action {
		case "", "get":
			getEmailSettings(w, s)
		default:
			endpointFail(w, s, "admin", "invalid_action",
				faultBad(utils.CodeInvalidAction, "Unknown action: "+action), "action", action)
		}
	}
}

type emailSettingsIn struct {
	SMTPEnabled    bool   `json:"smtp_enabled"`
	SMTPHost       string `json:"smtp_host"`
	SMTPPort       int    `json:"smtp_port"`
	SMTPEncryption string `json:"smtp_encryption"`
	SMTPAuth       bool   `json:"smtp_auth"`
	SMTPUsername   string `json:"smtp_username"`
	SMTPPassword   string `json:"smtp_password"`
	FromEmail      string `json:"from_email"`
	FromName       string `json:"from_name"`
}

func getEmailSettings(w http.ResponseWriter, s middleware.Scope) {
	row, f := emailSettingsRow(utils.CodeGetError)
	if f != nil {
		endpointFail(w, s, "admin", "email_get", f)
		return
	}
	// The form needs the password it will re-post, so the stored value is
	// revealed here and only here.
	row.SMTPPassword = row.PlainPassword()
	endpointOK(w, s, "admin", "email_get", map[string]interface{}{"settings": row})
}

func updateEmailSettings(w http.ResponseWriter, r *http.Request, s middleware.Scope) {
	var in emailSettingsIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		endpointFail(w, s, "admin", "email_update", faultBad(utils.CodeUpdateError, "Invalid request body"))
		return
	}
	if !utils.ValidEmail(in.FromEmail) {
		endpointFail(w, s, "admin", "email_update", faultBad(utils.CodeUpdateError, "A valid from address is required"))
		return
	}
	if in.SMTPEnabled && strings.TrimSpace(in.SMTPHost) == "" {
		endpointFail(w, s, "admin", "email_update",
			faultBad(utils.CodeUpdateError, "An SMTP host is required when SMTP is enabled"))
		return
	}

	row, f := emailSettingsRow(utils.CodeUpdateError)
	if f != nil {
		endpointFail(w, s, "admin", "email_update", f)
		return
	}

	row.SMTPEnabled = in.SMTPEnabled
	row.SMTPHost = strings.TrimSpace(in.SMTPHost)
	row.SMTPPort = in.SMTPPort
	if row.SMTPPort <= 0 || row.SMTPPort > 65535 {
		row.SMTPPort = 587
	}
	enc := strings.ToLower(strings.TrimSpace(in.SMTPEncryption))
	switch enc {
	case "none", "tls", "ssl":
	default:
		enc = "tls"
	}
	row.SMTPEncryption = enc
	row.SMTPAuth = in.SMTPAuth
	row.SMTPUsername = strings.TrimSpace(in.SMTPUsername)
	row.ObscurePassword(in.SMTPPassword)
	row.FromEmail = strings.TrimSpace(in.FromEmail)
	row.FromName = strings.TrimSpace(in.FromName)

	if err := config.DB.Save(&row).Error; err != nil {
		endpointFail(w, s, "admin", "email_update", faultDB(utils.CodeUpdateError, "Could not save email settings", err))
		return
	}

	// The audit row never carries the password, even obscured.
	auditLog(s, "admin", "email_update", row.ID, map[string]interface{}{
		"smtp_enabled": row.SMTPEnabled,
		"smtp_host":    row.SMTPHost,
		"smtp_port":    row.SMTPPort,
		"from_email":   row.FromEmail,
	})
	endpointOK(w, s, "admin", "email_update", map[string]interface{}{
		"message": "Email settings saved",
	})
}

func testEmailSettings(w http.ResponseWriter, r *http.Request, s middleware.Scope) {
	var in struct {
		Recipient string `json:"recipient"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !utils.ValidEmail(in.Recipient) {
		endpointFail(w, s, "admin", "email_test",
			faultBad(utils.CodeUpdateError, "A valid recipient address is required"))
		return
	}
	recipient := strings.TrimSpace(in.Recipient)

	settings, err := loadEmailSettings()
	if err != nil {
		endpointFail(w, s, "admin", "email_test", faultDB(utils.CodeUpdateError, "Could not load email settings", err))
		return
	}

	msg := mailer.Message{
		To:      []string{recipient},
		Subject: "Test message",
		HTMLBody: "<p>This is a test message from the Daily Activity Briefing system.</p>" +
			"<p>If you are reading it, outbound mail is configured correctly.</p>",
	}
	if err := mailer.Send(settings, msg); err != nil {
		logbook.Endpoint("email").Failure("test", err, "recipient", recipient)
		endpointFail(w, s, "admin", "email_test", faultDB(utils.CodeUpdateError, "Test message could not be sent", err))
		return
	}

	logbook.Endpoint("email").Event("test", "recipient", recipient)
	endpointOK(w, s, "admin", "email_test", map[string]interface{}{
		"message": "Test message sent to " + recipient,
	})
}

// emailSettingsRow loads the singleton, recreating it with defaults if the
// seed row has gone missing.
func emailSettingsRow(code string) (models.EmailSettings, *Fault) {
	var row models.EmailSettings
	err := config.DB.First(&row, 1).Error
	if err == nil {
		return row, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.EmailSettings{ID: 1, SMTPPort: 587, SMTPEncryption: "tls", SMTPAuth: true}
		if cerr := config.DB.Create(&row).Error; cerr == nil {
			return row, nil
		}
	}
	return row, faultDB(code, "Could not load email settings", err)
}

// loadEmailSettings reads the singleton row as live mailer settings.
func loadEmailSettings() (mailer.Settings, error) {
	var row models.EmailSettings
	if err := config.DB.First(&row, 1).Error; err != nil {
		return mailer.Settings{}, err
	}
	return mailer.FromModel(row), nil
}
