package utils

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// Shared field validation/normalization for the briefing endpoints.
// Malformed optional fields are coerced to defaults rather than rejected;
// only dates and required fields hard-fail.

const (
	DefaultTime     = "08:00"
	DefaultPriority = "medium"
	DefaultStatus   = "Active"
)

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

	priorities = []string{"low", "medium", "high", "critical"}
	statuses   = []string{"Active", "Standby", "Delayed", "Complete", "Offsite"}
	roles      = []string{"user", "manager", "admin"}
)

// ValidDate reports whether s is a well-formed YYYY-MM-DD calendar date.
// Anything that fails the shape check never reaches SQL.
func ValidDate(s string) bool {
	if !dateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// UKDate renders a YYYY-MM-DD date as DD/MM/YYYY. Input that does not
// parse comes back unchanged.
func UKDate(s string) string {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return s
	}
	return t.Format("02/01/2006")
}

// Today returns the current date in the storage format.
func Today() string {
	return time.Now().Format("2006-01-02")
}

// NormalizeTime returns a valid 24h HH:MM wall-clock value, falling back
// to the briefing default when the input is empty or malformed.
func NormalizeTime(s string) string {
	s = strings.TrimSpace(s)
	if timeRe.MatchString(s) {
		return s
	}
	return DefaultTime
}

// NormalizePriority maps any input onto the activity priority enum.
func NormalizePriority(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range priorities {
		if s == p {
			return p
		}
	}
	return DefaultPriority
}

// NormalizeStatus maps any input onto the subcontractor status enum,
// restoring canonical casing.
func NormalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	for _, st := range statuses {
		if strings.EqualFold(s, st) {
			return st
		}
	}
	return DefaultStatus
}

// ValidRole reports whether s is one of the fixed user roles.
func ValidRole(s string) bool {
	for _, r := range roles {
		if s == r {
			return true
		}
	}
	return false
}

// ValidEmail applies the same strictness the admin forms always had:
// a bare addr-spec with a dotted domain.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return false
	}
	at := strings.LastIndex(addr.Address, "@")
	return at > 0 && strings.Contains(addr.Address[at+1:], ".")
}
