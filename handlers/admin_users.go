package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"p9e.in/dabs/config"
	"p9e.in/dabs/middleware"
	"p9e.in/dabs/models"
	"p9e.in/dabs/utils"
)

// AdminUsers is the user-management endpoint behind the admin role guard.
// Accounts are global, not project-scoped: the panel manages every user.
var AdminUsers = Resource{
	Name:   "admin",
	Label:  "User",
	List:   listUsers,
	Get:    getUser,
	Add:    addUser,
	Update: updateUser,
	Delete: deleteUser,
}

type userIn struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ProjectID uint   `json:"project_id"`
	IsActive  *bool  `json:"is_active"`
}

func listUsers(s middleware.Scope, r *http.Request) (map[string]interface{}, *Fault) {
	page, limit := 1, 25
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	offset := (page - 1) * limit

	users := []models.User{}
	if err := config.DB.Order("username").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, faultDB(utils.CodeListError, "Could not load users", err)
	}
	var total int64
	if err := config.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, faultDB(utils.CodeListError, "Could not load users", err)
	}

	return map[string]interface{}{
		"users": users,
		"count": len(users),
		"total": total,
		"page":  page,
		"limit": limit,
	}, nil
}

func getUser(s middleware.Scope, id uint) (map[string]interface{}, *Fault) {
	var u models.User
	if err := config.DB.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faultNotFound("User")
		}
		return nil, faultDB(utils.CodeGetError, "Could not load user", err)
	}
	return map[string]interface{}{"user": u}, nil
}

func addUser(s middleware.Scope, r *http.Request) (map[string]interface{}, uint, *Fault) {
	var in userIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return nil, 0, faultBad(utils.CodeAddError, "Invalid request body")
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	switch {
	case in.Username == "":
		return nil, 0, faultBad(utils.CodeAddError, "Username is required")
	case in.Name == "":
		return nil, 0, faultBad(utils.CodeAddError, "Name is required")
	case !utils.ValidEmail(in.Email):
		return nil, 0, faultBad(utils.CodeAddError, "A valid email address is required")
	case len(in.Password) < 8:
		return nil, 0, faultBad(utils.CodeAddError, "Password must be at least 8 characters")
	case !utils.ValidRole(in.Role):
		return nil, 0, faultBad(utils.CodeAddError, "Role must be user, manager or admin")
	case in.ProjectID == 0:
		return nil, 0, faultBad(utils.CodeAddError, "A project_id is required")
	}

	if f := duplicateUser(in.Username, in.Email, 0, utils.CodeAddError); f != nil {
		return nil, 0, f
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, 0, faultDB(utils.CodeAddError, "Could not add user", err)
	}

	u := models.User{
		Username:     in.Username,
		PasswordHash: string(hash),
		Name:         in.Name,
		Email:        in.Email,
		Role:         in.Role,
		ProjectID:    in.ProjectID,
		IsActive:     true,
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if err := config.DB.Create(&u).Error; err != nil {
		return nil, 0, faultDB(utils.CodeAddError, "Could not add user", err)
	}
	return map[string]interface{}{"id": u.ID, "user": u}, u.ID, nil
}

func updateUser(s middleware.Scope, id uint, r *http.Request) (map[string]interface{}, *Fault) {
	var u models.User
	if err := config.DB.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faultNotFound("User")
		}
		return nil, faultDB(utils.CodeUpdateError, "Could not load user", err)
	}

	var in userIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return nil, faultBad(utils.CodeUpdateError, "Invalid request body")
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	switch {
	case in.Username == "":
		return nil, faultBad(utils.CodeUpdateError, "Username is required")
	case in.Name == "":
		return nil, faultBad(utils.CodeUpdateError, "Name is required")
	case !utils.ValidEmail(in.Email):
		return nil, faultBad(utils.CodeUpdateError, "A valid email address is required")
	case !utils.ValidRole(in.Role):
		return nil, faultBad(utils.CodeUpdateError, "Role must be user, manager or admin")
	case in.ProjectID == 0:
		return nil, faultBad(utils.CodeUpdateError, "A project_id is required")
	}

	if u.IsSystemAdmin() {
		if in.Role != "admin" {
			return nil, faultBad(utils.CodeUpdateError, "The system administrator cannot be demoted")
		}
		if in.IsActive != nil && !*in.IsActive {
			return nil, faultBad(utils.CodeUpdateError, "The system administrator cannot be deactivated")
		}
	}

	if f := duplicateUser(in.Username, in.Email, u.ID, utils.CodeUpdateError); f != nil {
		return nil, f
	}

	u.Username = in.Username
	u.Name = in.Name
	u.Email = in.Email
	u.Role = in.Role
	u.ProjectID = in.ProjectID
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.Password != "" {
		if len(in.Password) < 8 {
			return nil, faultBad(utils.CodeUpdateError, "Password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, faultDB(utils.CodeUpdateError, "Could not update user", err)
		}
		u.PasswordHash = string(hash)
	}

	if err := config.DB.Save(&u).Error; err != nil {
		return nil, faultDB(utils.CodeUpdateError, "Could not update user", err)
	}
	return map[string]interface{}{"id": u.ID, "user": u}, nil
}

func deleteUser(s middleware.Scope, id uint) *Fault {
	var u models.User
	if err := config.DB.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faultNotFound("User")
		}
		return faultDB(utils.CodeDeleteError, "Could not delete user", err)
	}
	if u.IsSystemAdmin() {
		return faultBad(utils.CodeDeleteError, "The system administrator cannot be deleted")
	}
	if u.ID == s.UserID {
		return faultBad(utils.CodeDeleteError, "You cannot delete your own account")
	}
	if err := config.DB.Delete(&u).Error; err != nil {
		return faultDB(utils.CodeDeleteError, "Could not delete user", err)
	}
	return nil
}

// duplicateUser answers the form-level duplicate message before the unique
// indexes get a chance to fire. exclude skips the row being updated.
func duplicateUser(username, email string, exclude uint, code string) *Fault {
	var n int64
	q := config.DB.Model(&models.User{}).Where("username = ? OR email = ?", username, email)
	if exclude != 0 {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Count(&n).Error; err != nil {
		return faultDB(code, "Could not check for duplicates", err)
	}
	if n > 0 {
		return faultBad(code, "Username or email already in use")
	}
	return nil
}
