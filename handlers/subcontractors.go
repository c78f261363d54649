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

// Subcontractors is the trade-company endpoint. Contacts and day tasks are
// child tables replaced wholesale on update, inside the same transaction as
// the parent row, so readers never observe a half-replaced list.
var Subcontractors = Resource{
	Name:   "subcontractors",
	Label:  "Subcontractor",
	List:   listSubcontractors,
	Get:    getSubcontractor,
	Add:    addSubcontractor,
	Update: updateSubcontractor,
	Delete: deleteSubcontractor,
}

const subcontractorOrder = "CASE status WHEN 'Active' THEN 0 WHEN 'Standby' THEN 1 WHEN 'Delayed' THEN 2 WHEN 'Complete' THEN 3 ELSE 4 END, name"

// subcontractorIn is the request shape. A single contact may arrive as the
// flattened contact_name/contact_phone/contact_email trio instead of the
// contacts array; tasks, when present, replace today's task list.
type subcontractorIn struct {
	models.Subcontractor
	ContactName  string    `json:"contact_name"`
	ContactPhone string    `json:"contact_phone"`
	ContactEmail string    `json:"contact_email"`
	Tasks        *[]string `json:"tasks"`
}

// subcontractorOut adds what every response record carries on top of the
// row itself: the flattened first contact and today's tasks.
type subcontractorOut struct {
	models.Subcontractor
	ContactName  string   `json:"contact_name"`
	ContactPhone string   `json:"contact_phone"`
	ContactEmail string   `json:"contact_email"`
	Tasks        []string `json:"tasks"`
}

func subcontractorRecord(item models.Subcontractor, tasks []string) subcontractorOut {
	out := subcontractorOut{Subcontractor: item, Tasks: tasks}
	if out.Tasks == nil {
		out.Tasks = []string{}
	}
	if len(item.Contacts) > 0 {
		out.ContactName = item.Contacts[0].Name
		out.ContactPhone = item.Contacts[0].Phone
		out.ContactEmail = item.Contacts[0].Email
	}
	return out
}

func listSubcontractors(s middleware.Scope, r *http.Request) (map[string]interface{}, *Fault) {
	items := []models.Subcontractor{}
	err := config.DB.
		Preload("Contacts", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("project_id = ?", s.ProjectID).
		Order(subcontractorOrder).
		Find(&items).Error
	if err != nil {
		return nil, faultDB(utils.CodeListError, "Could not load subcontractors", err)
	}

	today := utils.Today()
	out := make([]subcontractorOut, 0, len(items))
	for _, item := range items {
		tasks, err := tasksFor(item.ID, today)
		if err != nil {
			return nil, faultDB(utils.CodeListError, "Could not load subcontractors", err)
		}
		out = append(out, subcontractorRecord(item, tasks))
	}
	return map[string]interface{}{"subcontractors": out, "count": len(out)}, nil
}

func getSubcontractor(s middleware.Scope, id uint) (map[string]interface{}, *Fault) {
	item, err := subcontractorInProject(id, s.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faultNotFound("Subcontractor")
		}
		return nil, faultDB(utils.CodeGetError, "Could not load subcontractor", err)
	}
	tasks, err := tasksFor(item.ID, utils.Today())
	if err != nil {
		return nil, faultDB(utils.CodeGetError, "Could not load subcontractor", err)
	}
	return map[string]interface{}{"subcontractor": subcontractorRecord(item, tasks)}, nil
}

func addSubcontractor(s middleware.Scope, r *http.Request) (map[string]interface{}, uint, *Fault) {
	var in subcontractorIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return nil, 0, faultBad(utils.CodeAddError, "Invalid request body")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, 0, faultBad(utils.CodeAddError, "Name is required")
	}
	contacts, f := contactsOf(in, utils.CodeAddError)
	if f != nil {
		return nil, 0, f
	}
	if len(contacts) == 0 {
		return nil, 0, faultBad(utils.CodeAddError, "At least one contact is required")
	}

	item := models.Subcontractor{
		ProjectID: s.ProjectID,
		Name:      name,
		Trade:     strings.TrimSpace(in.Trade),
		Status:    utils.NormalizeStatus(in.Status),
		Notes:     in.Notes,
	}
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		for i := range contacts {
			contacts[i].SubcontractorID = item.ID
			contacts[i].Position = i
		}
		return tx.Create(&contacts).Error
	})
	if err != nil {
		return nil, 0, faultDB(utils.CodeAddError, "Could not add subcontractor", err)
	}

	item.Contacts = contacts
	return map[string]interface{}{
		"id":            item.ID,
		"subcontractor": subcontractorRecord(item, []string{}),
	}, item.ID, nil
}

func updateSubcontractor(s middleware.Scope, id uint, r *http.Request) (map[string]interface{}, *Fault) {
	item, err := subcontractorInProject(id, s.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faultNotFound("Subcontractor")
		}
		return nil, faultDB(utils.CodeUpdateError, "Could not load subcontractor", err)
	}

	var in subcontractorIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return nil, faultBad(utils.CodeUpdateError, "Invalid request body")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, faultBad(utils.CodeUpdateError, "Name is required")
	}
	contacts, f := contactsOf(in, utils.CodeUpdateError)
	if f != nil {
		return nil, f
	}
	if len(contacts) == 0 {
		return nil, faultBad(utils.CodeUpdateError, "At least one contact is required")
	}

	item.Name = name
	item.Trade = strings.TrimSpace(in.Trade)
	item.Status = utils.NormalizeStatus(in.Status)
	item.Notes = in.Notes
	item.Contacts = nil // children are replaced explicitly below

	today := utils.Today()
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&item).Error; err != nil {
			return err
		}
		if err := tx.Where("subcontractor_id = ?", item.ID).Delete(&models.SubcontractorContact{}).Error; err != nil {
			return err
		}
		for i := range contacts {
			contacts[i].SubcontractorID = item.ID
			contacts[i].Position = i
		}
		if err := tx.Create(&contacts).Error; err != nil {
			return err
		}
		if in.Tasks == nil {
			return nil
		}
		// Replace, never merge: today's list becomes exactly what was sent.
		if err := tx.Where("subcontractor_id = ? AND task_date = ?", item.ID, today).
			Delete(&models.SubcontractorTask{}).Error; err != nil {
			return err
		}
		for _, desc := range *in.Tasks {
			desc = strings.TrimSpace(desc)
			if desc == "" {
				continue
			}
			task := models.SubcontractorTask{
				SubcontractorID: item.ID,
				TaskDate:        today,
				TaskDescription: desc,
			}
			if err := tx.Create(&task).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, faultDB(utils.CodeUpdateError, "Could not update subcontractor", err)
	}

	item.Contacts = contacts
	tasks, err := tasksFor(item.ID, today)
	if err != nil {
		return nil, faultDB(utils.CodeUpdateError, "Could not update subcontractor", err)
	}
	return map[string]interface{}{
		"id":            item.ID,
		"subcontractor": subcontractorRecord(item, tasks),
	}, nil
}

func deleteSubcontractor(s middleware.Scope, id uint) *Fault {
	item, err := subcontractorInProject(id, s.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faultNotFound("Subcontractor")
		}
		return faultDB(utils.CodeDeleteError, "Could not delete subcontractor", err)
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		// Children first: task and contact rows must never outlive the parent.
		if err := tx.Where("subcontractor_id = ?", item.ID).Delete(&models.SubcontractorTask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("subcontractor_id = ?", item.ID).Delete(&models.SubcontractorContact{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Subcontractor{}, item.ID).Error
	})
	if err != nil {
		return faultDB(utils.CodeDeleteError, "Could not delete subcontractor", err)
	}
	return nil
}

// contactsOf normalizes either request form into ordered contact rows.
// Fully blank rows are dropped; a row with data but no name is an error.
func contactsOf(in subcontractorIn, code string) ([]models.SubcontractorContact, *Fault) {
	src := in.Contacts
	if len(src) == 0 {
		name := strings.TrimSpace(in.ContactName)
		if name != "" || in.ContactPhone != "" || in.ContactEmail != "" {
			src = []models.SubcontractorContact{{Name: name, Phone: in.ContactPhone, Email: in.ContactEmail}}
		}
	}

	out := make([]models.SubcontractorContact, 0, len(src))
	for _, c := range src {
		c.Name = strings.TrimSpace(c.Name)
		c.Phone = strings.TrimSpace(c.Phone)
		c.Email = strings.TrimSpace(c.Email)
		if c.Name == "" && c.Phone == "" && c.Email == "" {
			continue
		}
		if c.Name == "" {
			return nil, faultBad(code, "Each contact needs at least a name")
		}
		out = append(out, models.SubcontractorContact{Name: c.Name, Phone: c.Phone, Email: c.Email})
	}
	return out, nil
}

func subcontractorInProject(id, projectID uint) (models.Subcontractor, error) {
	var item models.Subcontractor
	err := config.DB.
		Preload("Contacts", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&item).Error
	return item, err
}

func tasksFor(subID uint, date string) ([]string, error) {
	rows := []models.SubcontractorTask{}
	err := config.DB.
		Where("subcontractor_id = ? AND task_date = ?", subID, date).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	tasks := make([]string, 0, len(rows))
	for _, t := range rows {
		tasks = append(tasks, t.TaskDescription)
	}
	return tasks, nil
}
