package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"p9e.in/dabs/config"
	"p9e.in/dabs/middleware"
	"p9e.in/dabs/models"
	"p9e.in/dabs/utils"
)

// Briefings serves the day-record endpoint: GET ?action=get|list and POST
// action=update, all keyed by (project, date) rather than id. The get
// action creates the row on demand so page loads always obtain a
// briefing_id for the day.
func Briefings(w http.ResponseWriter, r *http.Request) {
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
			updateBriefing(w, r, s)
		default:
			endpointFail(w, s, "briefings", "invalid_action",
				faultBad(utils.CodeInvalidAction, "Unknown action: "+action), "action", action)
		}
	default:
		switch action {
		case "", "get":
			getBriefing(w, r, s)
		case "list":
			listBriefings(w, r, s)
		default:
			endpointFail(w, s, "briefings", "invalid_action",
				faultBad(utils.CodeInvalidAction, "Unknown action: "+action), "action", action)
		}
	}
}

func getBriefing(w http.ResponseWriter, r *http.Request, s middleware.Scope) {
	date, f := dateParam(r, utils.CodeGetError)
	if f != nil {
		endpointFail(w, s, "briefings", "get", f)
		return
	}
	b, err := briefingFor(s.ProjectID, date)
	if err != nil {
		endpointFail(w, s, "briefings", "get", faultDB(utils.CodeGetError, "Could not load briefing", err))
		return
	}
	endpointOK(w, s, "briefings", "get", map[string]interface{}{
		"briefing": b,
		"date":     b.Date,
		"date_uk":  utils.UKDate(b.Date),
	}, "id", b.ID, "date", b.Date)
}

func listBriefings(w http.ResponseWriter, r *http.Request, s middleware.Scope) {
	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 365 {
			limit = n
		}
	}

	items := []models.Briefing{}
	err := config.DB.Where("project_id = ?", s.ProjectID).
		Order("date DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		endpointFail(w, s, "briefings", "list", faultDB(utils.CodeListError, "Could not load briefings", err))
		return
	}
	endpointOK(w, s, "briefings", "list", map[string]interface{}{
		"briefings": items,
		"count":     len(items),
	}, "count", len(items))
}

func updateBriefing(w http.ResponseWriter, r *http.Request, s middleware.Scope) {
	var in struct {
		Date       string  `json:"date"`
		Overview   string  `json:"overview"`
		SafetyInfo *string `json:"safety_info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		endpointFail(w, s, "briefings", "update", faultBad(utils.CodeUpdateError, "Invalid request body"))
		return
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = utils.Today()
	} else if !utils.ValidDate(date) {
		endpointFail(w, s, "briefings", "update",
			faultBad(utils.CodeUpdateError, "Invalid date", "date must be YYYY-MM-DD"))
		return
	}

	b, err := briefingFor(s.ProjectID, date)
	if err != nil {
		endpointFail(w, s, "briefings", "update", faultDB(utils.CodeUpdateError, "Could not update briefing", err))
		return
	}

	b.Overview = in.Overview
	if in.SafetyInfo != nil {
		b.SafetyInfo = *in.SafetyInfo
	}
	b.UpdatedBy = s.Username
	b.LastUpdated = time.Now()
	if err := config.DB.Save(&b).Error; err != nil {
		endpointFail(w, s, "briefings", "update", faultDB(utils.CodeUpdateError, "Could not update briefing", err))
		return
	}

	auditLog(s, "briefings", "update", b.ID, b)
	endpointOK(w, s, "briefings", "update", map[string]interface{}{
		"id":       b.ID,
		"briefing": b,
		"message":  "Briefing updated successfully",
	}, "id", b.ID, "date", b.Date)
}

// briefingFor returns the (project, date) briefing row, creating an empty
// one on first access that day.
func briefingFor(projectID uint, date string) (models.Briefing, error) {
	var b models.Briefing
	err := config.DB.Where("project_id = ? AND date = ?", projectID, date).First(&b).Error
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return b, err
	}

	b = models.Briefing{ProjectID: projectID, Date: date, LastUpdated: time.Now()}
	if err := config.DB.Create(&b).Error; err != nil {
		// Lost the create race on (project, date); the winner's row serves.
		var existing models.Briefing
		if rerr := config.DB.Where("project_id = ? AND date = ?", projectID, date).First(&existing).Error; rerr == nil {
			return existing, nil
		}
		return b, err
	}
	return b, nil
}

// dateParam reads the optional date query arg, defaulting to today.
func dateParam(r *http.Request, code string) (string, *Fault) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		return utils.Today(), nil
	}
	if !utils.ValidDate(date) {
		return "", faultBad(code, "Invalid date", "date must be YYYY-MM-DD")
	}
	return date, nil
}
