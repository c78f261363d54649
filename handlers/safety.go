package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"p9e.in/dabs/config"
	"p9e.in/dabs/middleware"
	"p9e.in/dabs/utils"
)

// Safety serves the day's safety text. It rides the same (project, date)
// briefing row the briefings endpoint manages; update is its only
// mutating action.
func Safety(w http.ResponseWriter, r *http.Request) {
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
			updateSafety(w, r, s)
		default:
			endpointFail(w, s, "safety", "invalid_action",
				faultBad(utils.CodeInvalidAction, "Unknown action: "+action), "action", action)
		}
	default:
		switch action {
		case "", "get":
			getSafety(w, r, s)
		default:
			endpointFail(w, s, "safety", "invalid_action",
				faultBad(utils.CodeInvalidAction, "Unknown action: "+action), "action", action)
		}
	}
}

func getSafety(w http.ResponseWriter, r *http.Request, s middleware.Scope) {
	date, f := dateParam(r, utils.CodeGetError)
	if f != nil {
		endpointFail(w, s, "safety", "get", f)
		return
	}
	b, err := briefingFor(s.ProjectID, date)
	if err != nil {
		endpointFail(w, s, "safety", "get", faultDB(utils.CodeGetError, "Could not load safety information", err))
		return
	}
	endpointOK(w, s, "safety", "get", map[string]interface{}{
		"safety_info": b.SafetyInfo,
		"date":        b.Date,
		"date_uk":     utils.UKDate(b.Date),
		"updated_by":  b.UpdatedBy,
	}, "id", b.ID, "date", b.Date)
}

func updateSafety(w http.ResponseWriter, r *http.Request, s middleware.Scope) {
	var in struct {
		Date       string `json:"date"`
		SafetyInfo string `json:"safety_info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		endpointFail(w, s, "safety", "update", faultBad(utils.CodeUpdateError, "Invalid request body"))
		return
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = utils.Today()
	} else if !utils.ValidDate(date) {
		endpointFail(w, s, "safety", "update",
			faultBad(utils.CodeUpdateError, "Invalid date", "date must be YYYY-MM-DD"))
		return
	}

	b, err := briefingFor(s.ProjectID, date)
	if err != nil {
		endpointFail(w, s, "safety", "update", faultDB(utils.CodeUpdateError, "Could not update safety information", err))
		return
	}

	b.SafetyInfo = in.SafetyInfo
	b.UpdatedBy = s.Username
	b.LastUpdated = time.Now()
	if err := config.DB.Save(&b).Error; err != nil {
		endpointFail(w, s, "safety", "update", faultDB(utils.CodeUpdateError, "Could not update safety information", err))
		return
	}

	auditLog(s, "safety", "update", b.ID, map[string]interface{}{
		"date":        b.Date,
		"safety_info": b.SafetyInfo,
	})
	endpointOK(w, s, "safety", "update", map[string]interface{}{
		"id":          b.ID,
		"date":        b.Date,
		"date_uk":     utils.UKDate(b.Date),
		"safety_info": b.SafetyInfo,
		"message":     "Safety information updated successfully",
	}, "id", b.ID, "date", b.Date)
}
