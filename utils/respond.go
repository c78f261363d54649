package utils

import (
	"encoding/json"
	"net/http"
	"time"
)

// Error codes shared by every endpoint envelope.
const (
	CodeAuthRequired  = "AUTH_REQUIRED"
	CodeDBConnection  = "DB_CONNECTION_ERROR"
	CodeInvalidID     = "INVALID_ID"
	CodeNotFound      = "NOT_FOUND"
	CodeListError     = "LIST_ERROR"
	CodeGetError      = "GET_ERROR"
	CodeAddError      = "ADD_ERROR"
	CodeUpdateError   = "UPDATE_ERROR"
	CodeDeleteError   = "DELETE_ERROR"
	CodeInvalidAction = "INVALID_ACTION"
)

const ukTimestampLayout = "02/01/2006 15:04:05"

// Write encodes an envelope at HTTP 200, decorating it with the server
// timestamps every response carries. Failure is signalled by the ok
// boolean, never by the status code.
func Write(w http.ResponseWriter, payload map[string]interface{}) {
	now := time.Now()
	payload["timestamp_uk"] = now.Format(ukTimestampLayout)
	payload["server_time"] = now.Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// WriteOK sends a success envelope around payload.
func WriteOK(w http.ResponseWriter, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["ok"] = true
	Write(w, payload)
}

// WriteFail sends the uniform failure envelope. details is optional and
// carries field-level validation text when present.
func WriteFail(w http.ResponseWriter, code, message string, details ...string) {
	payload := map[string]interface{}{
		"ok":         false,
		"error":      message,
		"error_code": code,
		"message":    message,
	}
	if len(details) > 0 && details[0] != "" {
		payload["details"] = details[0]
	}
	Write(w, payload)
}
