package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"p9e.in/dabs/config"
	"p9e.in/dabs/middleware"
	"p9e.in/dabs/models"
	"p9e.in/dabs/utils"
)

// ActivityLogs serves the admin audit-trail panel: GET ?action=list pages
// through the rows newest first, POST action=clear prunes old ones.
func ActivityLogs(w http.ResponseWriter, r *http.Request) {
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
		case "", "clear":
			clearActivityLogs(w, r, s)
		default:
			endpointFail(w, s, "admin", "invalid_action",
				faultBad(utils.CodeInvalidAction, "Unknown action: "+action), "action", action)
		}
	default:
		switch action {
		case "", "list":
			listActivityLogs(w, r, s)
		default:
			endpointFail(w, s, "admin", "invalid_action",
				faultBad(utils.CodeInvalidAction, "Unknown action: "+action), "action", action)
		}
	}
}

func listActivityLogs(w http.ResponseWriter, r *http.Request, s middleware.Scope) {
	page, limit := 1, 50
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	offset := (page - 1) * limit
	endpoint := strings.TrimSpace(r.URL.Query().Get("endpoint"))

	var total int64
	countQ := config.DB.Model(&models.ActivityLog{})
	if endpoint != "" {
		countQ = countQ.Where("endpoint = ?", endpoint)
	}
	if err := countQ.Count(&total).Error; err != nil {
		endpointFail(w, s, "admin", "logs_list", faultDB(utils.CodeListError, "Could not load activity log", err))
		return
	}

	rows := []models.ActivityLog{}
	listQ := config.DB.Order("created_at DESC, id DESC").Limit(limit).Offset(offset)
	if endpoint != "" {
		listQ = listQ.Where("endpoint = ?", endpoint)
	}
	if err := listQ.Find(&rows).Error; err != nil {
		endpointFail(w, s, "admin", "logs_list", faultDB(utils.CodeListError, "Could not load activity log", err))
		return
	}

	endpointOK(w, s, "admin", "logs_list", map[string]interface{}{
		"logs":  rows,
		"count": len(rows),
		"total": total,
		"page":  page,
		"limit": limit,
	}, "count", len(rows))
}

func clearActivityLogs(w http.ResponseWriter, r *http.Request, s middleware.Scope) {
	var in struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		endpointFail(w, s, "admin", "logs_clear", faultBad(utils.CodeDeleteError, "Invalid request body"))
		return
	}
	if in.Days < 1 {
		in.Days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -in.Days)

	res := config.DB.Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	if res.Error != nil {
		endpointFail(w, s, "admin", "logs_clear", faultDB(utils.CodeDeleteError, "Could not clear activity log", res.Error))
		return
	}

	auditLog(s, "admin", "logs_clear", 0, map[string]interface{}{
		"days":    in.Days,
		"removed": res.RowsAffected,
	})
	endpointOK(w, s, "admin", "logs_clear", map[string]interface{}{
		"removed": res.RowsAffected,
		"message": fmt.Sprintf("Removed %d log entries older than %d days", res.RowsAffected, in.Days),
	}, "removed", res.RowsAffected)
}
