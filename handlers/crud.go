package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/datatypes"
	"p9e.in/dabs/config"
	"p9e.in/dabs/middleware"
	"p9e.in/dabs/models"
	"p9e.in/dabs/pkg/logbook"
	"p9e.in/dabs/utils"
)

// Fault is a failed operation expressed in envelope terms. Message and
// Details go to the client; Err is the server-side cause and only ever
// reaches the endpoint log file.
type Fault struct {
	Code    string
	Message string
	Details string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return f.Err.Error()
	}
	return f.Message
}

func faultBad(code, message string, details ...string) *Fault {
	f := &Fault{Code: code, Message: message}
	if len(details) > 0 {
		f.Details = details[0]
	}
	return f
}

// faultDB keeps raw database errors out of responses: the client sees the
// generic message for the operation, the log file gets the cause.
func faultDB(code, message string, err error) *Fault {
	return &Fault{Code: code, Message: message, Err: err}
}

// faultNotFound is shared by missing and foreign-project ids so a caller
// cannot probe which ids exist in other projects.
func faultNotFound(label string) *Fault {
	return &Fault{Code: utils.CodeNotFound, Message: label + " not found"}
}

// Resource describes one entity endpoint. The dispatcher owns scope
// extraction, action routing, id parsing, envelope encoding, file logging
// and audit rows; the operation funcs own queries and validation only.
type Resource struct {
	Name  string // endpoint name: log file and audit rows
	Label string // display name in messages

	List   func(s middleware.Scope, r *http.Request) (map[string]interface{}, *Fault)
	Get    func(s middleware.Scope, id uint) (map[string]interface{}, *Fault)
	Add    func(s middleware.Scope, r *http.Request) (map[string]interface{}, uint, *Fault)
	Update func(s middleware.Scope, id uint, r *http.Request) (map[string]interface{}, *Fault)
	Delete func(s middleware.Scope, id uint) *Fault
}

// Collection serves the action-style entry point and the REST collection
// verbs on the entity path. GET without an action lists, POST without an
// action adds; GET carries list|get, POST carries add|update|delete.
func (res Resource) Collection(w http.ResponseWriter, r *http.Request) {
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
		case "", "add":
			res.add(w, r, s)
		case "update":
			id, ok := res.parseID(w, s, "update", r.URL.Query().Get("id"))
			if !ok {
				return
			}
			res.update(w, r, s, id)
		case "delete":
			id, ok := res.parseID(w, s, "delete", r.URL.Query().Get("id"))
			if !ok {
				return
			}
			res.delete(w, s, id)
		default:
			res.invalidAction(w, s, action)
		}
	default:
		switch action {
		case "", "list":
			res.list(w, r, s)
		case "get":
			id, ok := res.parseID(w, s, "get", r.URL.Query().Get("id"))
			if !ok {
				return
			}
			res.get(w, s, id)
		default:
			res.invalidAction(w, s, action)
		}
	}
}

// Item serves the REST forms addressed by a path id.
func (res Resource) Item(w http.ResponseWriter, r *http.Request) {
	s, ok := scopeOf(w, r)
	if !ok {
		return
	}
	if !dbReady(w) {
		return
	}

	var action string
	switch r.Method {
	case http.MethodPut:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = "get"
	}
	id, ok := res.parseID(w, s, action, mux.Vars(r)["id"])
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPut:
		res.update(w, r, s, id)
	case http.MethodDelete:
		res.delete(w, s, id)
	default:
		res.get(w, s, id)
	}
}

func (res Resource) list(w http.ResponseWriter, r *http.Request, s middleware.Scope) {
	payload, f := res.List(s, r)
	if f != nil {
		res.fail(w, s, "list", f)
		return
	}
	var kv []interface{}
	if c, ok := payload["count"]; ok {
		kv = append(kv, "count", c)
	}
	res.ok(w, s, "list", payload, kv...)
}

func (res Resource) get(w http.ResponseWriter, s middleware.Scope, id uint) {
	payload, f := res.Get(s, id)
	if f != nil {
		res.fail(w, s, "get", f, "id", id)
		return
	}
	res.ok(w, s, "get", payload, "id", id)
}

func (res Resource) add(w http.ResponseWriter, r *http.Request, s middleware.Scope) {
	payload, id, f := res.Add(s, r)
	if f != nil {
		res.fail(w, s, "add", f)
		return
	}
	res.audit(s, "add", id, payload)
	payload["message"] = res.Label + " added successfully"
	res.ok(w, s, "add", payload, "id", id)
}

func (res Resource) update(w http.ResponseWriter, r *http.Request, s middleware.Scope, id uint) {
	payload, f := res.Update(s, id, r)
	if f != nil {
		res.fail(w, s, "update", f, "id", id)
		return
	}
	res.audit(s, "update", id, payload)
	payload["message"] = res.Label + " updated successfully"
	res.ok(w, s, "update", payload, "id", id)
}

func (res Resource) delete(w http.ResponseWriter, s middleware.Scope, id uint) {
	if f := res.Delete(s, id); f != nil {
		res.fail(w, s, "delete", f, "id", id)
		return
	}
	res.audit(s, "delete", id, nil)
	res.ok(w, s, "delete", map[string]interface{}{
		"id":      id,
		"message": res.Label + " deleted successfully",
	}, "id", id)
}

func (res Resource) invalidAction(w http.ResponseWriter, s middleware.Scope, action string) {
	f := faultBad(utils.CodeInvalidAction, "Unknown action: "+action)
	res.fail(w, s, "invalid_action", f, "action", action)
}

// parseID rejects missing, non-numeric and zero ids before any query runs.
func (res Resource) parseID(w http.ResponseWriter, s middleware.Scope, action, raw string) (uint, bool) {
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		res.fail(w, s, action, faultBad(utils.CodeInvalidID, "A valid numeric id is required"), "raw_id", raw)
		return 0, false
	}
	return uint(n), true
}

func (res Resource) ok(w http.ResponseWriter, s middleware.Scope, action string, payload map[string]interface{}, kv ...interface{}) {
	endpointOK(w, s, res.Name, action, payload, kv...)
}

func (res Resource) fail(w http.ResponseWriter, s middleware.Scope, action string, f *Fault, kv ...interface{}) {
	endpointFail(w, s, res.Name, action, f, kv...)
}

func (res Resource) audit(s middleware.Scope, action string, id uint, record interface{}) {
	auditLog(s, res.Name, action, id, record)
}

// endpointOK file-logs a completed action and sends the success envelope.
func endpointOK(w http.ResponseWriter, s middleware.Scope, endpoint, action string, payload map[string]interface{}, kv ...interface{}) {
	keys := append([]interface{}{"user", s.Username, "project_id", s.ProjectID}, kv...)
	logbook.Endpoint(endpoint).Event(action, keys...)
	utils.WriteOK(w, payload)
}

// endpointFail file-logs the cause and sends the failure envelope.
func endpointFail(w http.ResponseWriter, s middleware.Scope, endpoint, action string, f *Fault, kv ...interface{}) {
	keys := append([]interface{}{"user", s.Username, "project_id", s.ProjectID}, kv...)
	logbook.Endpoint(endpoint).Failure(action, f, keys...)
	utils.WriteFail(w, f.Code, f.Message, f.Details)
}

// auditLog inserts the database audit row for a mutation. Audit failures
// are file-logged and never fail the request that caused them.
func auditLog(s middleware.Scope, endpoint, action string, id uint, record interface{}) {
	entry := models.ActivityLog{
		ProjectID: s.ProjectID,
		Username:  s.Username,
		Endpoint:  endpoint,
		Action:    action,
		EntityID:  id,
	}
	if record != nil {
		if b, err := json.Marshal(record); err == nil {
			entry.Details = datatypes.JSON(b)
		}
	}
	if err := config.DB.Create(&entry).Error; err != nil {
		logbook.Endpoint(endpoint).Failure("audit", err, "action", action, "id", id)
	}
}

func scopeOf(w http.ResponseWriter, r *http.Request) (middleware.Scope, bool) {
	s, ok := middleware.GetScope(r)
	if !ok {
		utils.WriteFail(w, utils.CodeAuthRequired, "Authentication required")
		return middleware.Scope{}, false
	}
	return s, true
}

func dbReady(w http.ResponseWriter) bool {
	if config.DB == nil {
		utils.WriteFail(w, utils.CodeDBConnection, "Database connection failed")
		return false
	}
	return true
}
