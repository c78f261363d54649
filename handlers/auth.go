// handlers/auth.go
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"p9e.in/dabs/config"
	"p9e.in/dabs/middleware"
	"p9e.in/dabs/models"
	"p9e.in/dabs/pkg/logbook"
	"p9e.in/dabs/pkg/mailer"
	"p9e.in/dabs/utils"
)

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login is the public credential exchange: username and password for a
// 24h token plus the user payload the client renders. Unknown user, wrong
// password and inactive account all answer the same message.
func Login(w http.ResponseWriter, r *http.Request) {
	if !dbReady(w) {
		return
	}

	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logbook.Endpoint("auth").Failure("login", err)
		utils.WriteFail(w, utils.CodeAuthRequired, "Invalid username or password")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	var u models.User
	if err := config.DB.Where("username = ? AND is_active = ?", req.Username, true).First(&u).Error; err != nil {
		logbook.Endpoint("auth").Failure("login", err, "username", req.Username)
		utils.WriteFail(w, utils.CodeAuthRequired, "Invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		logbook.Endpoint("auth").Failure("login", err, "username", req.Username)
		utils.WriteFail(w, utils.CodeAuthRequired, "Invalid username or password")
		return
	}

	token, err := middleware.GenerateToken(u.ID, u.Username, u.Name, u.Role, u.ProjectID)
	if err != nil {
		logbook.Endpoint("auth").Failure("login", err, "username", req.Username)
		utils.WriteFail(w, utils.CodeAuthRequired, "Could not create session")
		return
	}

	logbook.Endpoint("auth").Event("login", "user", u.Username, "project_id", u.ProjectID)
	utils.WriteOK(w, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":         u.ID,
			"username":   u.Username,
			"name":       u.Name,
			"email":      u.Email,
			"role":       u.Role,
			"project_id": u.ProjectID,
		},
	})
}

// Profile returns the authenticated user's record.
func Profile(w http.ResponseWriter, r *http.Request) {
	s, ok := scopeOf(w, r)
	if !ok {
		return
	}
	if !dbReady(w) {
		return
	}

	var u models.User
	if err := config.DB.First(&u, s.UserID).Error; err != nil {
		endpointFail(w, s, "auth", "profile", faultDB(utils.CodeGetError, "Could not load profile", err))
		return
	}
	endpointOK(w, s, "auth", "profile", map[string]interface{}{"user": u})
}

// ChangePassword verifies the current password before re-hashing.
func ChangePassword(w http.ResponseWriter, r *http.Request) {
	s, ok := scopeOf(w, r)
	if !ok {
		return
	}
	if !dbReady(w) {
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		endpointFail(w, s, "auth", "change_password", faultBad(utils.CodeUpdateError, "Invalid request body"))
		return
	}
	if len(req.NewPassword) < 8 {
		endpointFail(w, s, "auth", "change_password",
			faultBad(utils.CodeUpdateError, "New password must be at least 8 characters"))
		return
	}

	var u models.User
	if err := config.DB.First(&u, s.UserID).Error; err != nil {
		endpointFail(w, s, "auth", "change_password", faultDB(utils.CodeUpdateError, "Could not change password", err))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		endpointFail(w, s, "auth", "change_password", faultBad(utils.CodeUpdateError, "Current password is incorrect"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		endpointFail(w, s, "auth", "change_password", faultDB(utils.CodeUpdateError, "Could not change password", err))
		return
	}
	if err := config.DB.Model(&u).Update("password_hash", string(hash)).Error; err != nil {
		endpointFail(w, s, "auth", "change_password", faultDB(utils.CodeUpdateError, "Could not change password", err))
		return
	}
	endpointOK(w, s, "auth", "change_password", map[string]interface{}{
		"message": "Password changed successfully",
	})
}

// RequestPasswordReset issues a one-hour token and mails the reset link.
// The response is identical whether or not the address is registered.
func RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if !dbReady(w) {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !utils.ValidEmail(req.Email) {
		utils.WriteFail(w, utils.CodeUpdateError, "A valid email address is required")
		return
	}
	email := strings.TrimSpace(req.Email)

	done := func() {
		utils.WriteOK(w, map[string]interface{}{
			"message": "If that address is registered, a reset link is on its way",
		})
	}

	var u models.User
	if err := config.DB.Where("email = ? AND is_active = ?", email, true).First(&u).Error; err != nil {
		logbook.Endpoint("auth").Event("reset_request", "known", false)
		done()
		return
	}

	pr := models.PasswordReset{
		UserID:    u.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := config.DB.Create(&pr).Error; err != nil {
		logbook.Endpoint("auth").Failure("reset_request", err, "user", u.Username)
		done()
		return
	}

	emailResetLink(u, pr.Token)
	logbook.Endpoint("auth").Event("reset_request", "user", u.Username)
	done()
}

// ConfirmPasswordReset consumes an unexpired, unused token.
func ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	if !dbReady(w) {
		return
	}

	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		utils.WriteFail(w, utils.CodeUpdateError, "Invalid or expired reset token")
		return
	}
	if len(req.NewPassword) < 8 {
		utils.WriteFail(w, utils.CodeUpdateError, "New password must be at least 8 characters")
		return
	}

	var pr models.PasswordReset
	err := config.DB.Where("token = ? AND used_at IS NULL AND expires_at > ?", strings.TrimSpace(req.Token), time.Now()).
		First(&pr).Error
	if err != nil {
		logbook.Endpoint("auth").Failure("reset_confirm", err)
		utils.WriteFail(w, utils.CodeUpdateError, "Invalid or expired reset token")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logbook.Endpoint("auth").Failure("reset_confirm", err)
		utils.WriteFail(w, utils.CodeUpdateError, "Could not reset password")
		return
	}

	now := time.Now()
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", pr.UserID).
			Update("password_hash", string(hash)).Error; err != nil {
			return err
		}
		return tx.Model(&pr).Update("used_at", &now).Error
	})
	if err != nil {
		logbook.Endpoint("auth").Failure("reset_confirm", err, "user_id", pr.UserID)
		utils.WriteFail(w, utils.CodeUpdateError, "Could not reset password")
		return
	}

	logbook.Endpoint("auth").Event("reset_confirm", "user_id", pr.UserID)
	utils.WriteOK(w, map[string]interface{}{"message": "Password reset successfully"})
}

func emailResetLink(u models.User, token string) {
	settings, err := loadEmailSettings()
	if err != nil {
		logbook.Endpoint("email").Failure("reset_link", err, "user", u.Username)
		return
	}

	base := os.Getenv("APP_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	link := base + "/reset-password?token=" + token

	msg := mailer.Message{
		To:      []string{u.Email},
		Subject: "Password reset",
		HTMLBody: "<p>Hello " + u.Name + ",</p>" +
			"<p>A password reset was requested for your account. The link below is valid for one hour.</p>" +
			"<p><a href=\"" + link + "\">Reset your password</a></p>" +
			"<p>If you did not request this, you can ignore this message.</p>",
	}
	if err := mailer.Send(settings, msg); err != nil {
		logbook.Endpoint("email").Failure("reset_link", err, "user", u.Username)
		return
	}
	logbook.Endpoint("email").Event("reset_link", "user", u.Username)
}
