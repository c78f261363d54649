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
	"p9e.in/dabs/utils"
)

// Activities is the briefing-activity endpoint. Project membership is
// transitive through the activity's briefing, so every operation joins
// briefings to scope its rows.
var Activities = Resource{
	Name:   "activities",
	Label:  "Activity",
	List:   listActivities,
	Get:    getActivity,
	Add:    addActivity,
	Update: updateActivity,
	Delete: deleteActivity,
}

const activityOrder = "CASE activities.priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, activities.time, activities.id"

func listActivities(s middleware.Scope, r *http.Request) (map[string]interface{}, *Fault) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date != "" && !utils.ValidDate(date) {
		return nil, faultBad(utils.CodeListError, "Invalid date filter", "date must be YYYY-MM-DD")
	}

	q := config.DB.
		Select("activities.*").
		Joins("JOIN briefings ON briefings.id = activities.briefing_id").
		Where("briefings.project_id = ?", s.ProjectID)
	if date != "" {
		q = q.Where("briefings.date = ?", date)
	}

	items := []models.Activity{}
	if err := q.Order(activityOrder).Find(&items).Error; err != nil {
		return nil, faultDB(utils.CodeListError, "Could not load activities", err)
	}

	payload := map[string]interface{}{
		"activities": items,
		"count":      len(items),
	}
	if date != "" {
		payload["date"] = date
		payload["date_uk"] = utils.UKDate(date)
	}
	return payload, nil
}

func getActivity(s middleware.Scope, id uint) (map[string]interface{}, *Fault) {
	item, err := activityInProject(id, s.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faultNotFound("Activity")
		}
		return nil, faultDB(utils.CodeGetError, "Could not load activity", err)
	}
	return map[string]interface{}{"activity": item}, nil
}

func addActivity(s middleware.Scope, r *http.Request) (map[string]interface{}, uint, *Fault) {
	var in models.Activity
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return nil, 0, faultBad(utils.CodeAddError, "Invalid request body")
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, 0, faultBad(utils.CodeAddError, "Title is required")
	}
	if in.BriefingID == 0 {
		return nil, 0, faultBad(utils.CodeAddError, "A briefing_id is required")
	}
	ok, err := briefingInProject(in.BriefingID, s.ProjectID)
	if err != nil {
		return nil, 0, faultDB(utils.CodeAddError, "Could not add activity", err)
	}
	if !ok {
		return nil, 0, faultBad(utils.CodeAddError, "Briefing not found for this project")
	}

	item := models.Activity{
		BriefingID:  in.BriefingID,
		Title:       in.Title,
		Description: in.Description,
		Area:        in.Area,
		Priority:    utils.NormalizePriority(in.Priority),
		LaborCount:  in.LaborCount,
		Contractors: in.Contractors,
		AssignedTo:  in.AssignedTo,
		Time:        utils.NormalizeTime(in.Time),
	}
	if item.LaborCount < 0 {
		item.LaborCount = 0
	}
	if err := config.DB.Create(&item).Error; err != nil {
		return nil, 0, faultDB(utils.CodeAddError, "Could not add activity", err)
	}
	return map[string]interface{}{"id": item.ID, "activity": item}, item.ID, nil
}

func updateActivity(s middleware.Scope, id uint, r *http.Request) (map[string]interface{}, *Fault) {
	item, err := activityInProject(id, s.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faultNotFound("Activity")
		}
		return nil, faultDB(utils.CodeUpdateError, "Could not load activity", err)
	}

	var in models.Activity
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return nil, faultBad(utils.CodeUpdateError, "Invalid request body")
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, faultBad(utils.CodeUpdateError, "Title is required")
	}

	// A moved activity must land on a briefing in the same project.
	if in.BriefingID != 0 && in.BriefingID != item.BriefingID {
		ok, err := briefingInProject(in.BriefingID, s.ProjectID)
		if err != nil {
			return nil, faultDB(utils.CodeUpdateError, "Could not update activity", err)
		}
		if !ok {
			return nil, faultBad(utils.CodeUpdateError, "Briefing not found for this project")
		}
		item.BriefingID = in.BriefingID
	}

	item.Title = in.Title
	item.Description = in.Description
	item.Area = in.Area
	item.Priority = utils.NormalizePriority(in.Priority)
	item.LaborCount = in.LaborCount
	if item.LaborCount < 0 {
		item.LaborCount = 0
	}
	item.Contractors = in.Contractors
	item.AssignedTo = in.AssignedTo
	item.Time = utils.NormalizeTime(in.Time)

	// Save on the loaded row keeps its id; an update can never insert.
	if err := config.DB.Save(&item).Error; err != nil {
		return nil, faultDB(utils.CodeUpdateError, "Could not update activity", err)
	}
	return map[string]interface{}{"id": item.ID, "activity": item}, nil
}

func deleteActivity(s middleware.Scope, id uint) *Fault {
	if _, err := activityInProject(id, s.ProjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faultNotFound("Activity")
		}
		return faultDB(utils.CodeDeleteError, "Could not delete activity", err)
	}
	if err := config.DB.Delete(&models.Activity{}, id).Error; err != nil {
		return faultDB(utils.CodeDeleteError, "Could not delete activity", err)
	}
	return nil
}

// activityInProject loads one activity only when its briefing belongs to
// the project. Foreign and missing ids are indistinguishable to callers.
func activityInProject(id, projectID uint) (models.Activity, error) {
	var item models.Activity
	err := config.DB.
		Select("activities.*").
		Joins("JOIN briefings ON briefings.id = activities.briefing_id").
		Where("activities.id = ? AND briefings.project_id = ?", id, projectID).
		First(&item).Error
	return item, err
}

func briefingInProject(id, projectID uint) (bool, error) {
	var n int64
	err := config.DB.Model(&models.Briefing{}).
		Where("id = ? AND project_id = ?", id, projectID).
		Count(&n).Error
	return n > 0, err
}
