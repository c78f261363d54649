package handlers

import (
	"net/http"
	"regexp"
	"testing"

	"p9e.in/dabs/models"
	"p9e.in/dabs/utils"
)

func activityTitles(t *testing.T, resp map[string]interface{}) []string {
	t.Helper()
	raw, ok := resp["activities"].([]interface{})
	if !ok {
		t.Fatalf("response has no activities list: %v", resp)
	}
	titles := make([]string, 0, len(raw))
	for _, it := range raw {
		m, _ := it.(map[string]interface{})
		title, _ := m["title"].(string)
		titles = append(titles, title)
	}
	return titles
}

func TestAddActivityAppliesDefaults(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")
	b := seedBriefing(t, p.ID, "2025-03-10")

	resp := call(t, Activities.Collection, http.MethodPost, "/api/v1/activities?action=add", asForeman(p.ID), map[string]interface{}{
		"briefing_id": b.ID,
		"title":       "  Pour slab  ",
		"labor_count": -4,
	})
	wantOK(t, resp)
	if msg, _ := resp["message"].(string); msg != "Activity added successfully" {
		t.Fatalf("message = %q", msg)
	}

	var saved models.Activity
	if err := mustDB(t).First(&saved, respNum(t, resp, "id")).Error; err != nil {
		t.Fatalf("load saved activity: %v", err)
	}
	if saved.Title != "Pour slab" {
		t.Errorf("title = %q, want trimmed", saved.Title)
	}
	if saved.Time != utils.DefaultTime {
		t.Errorf("time = %q, want %q", saved.Time, utils.DefaultTime)
	}
	if saved.Priority != utils.DefaultPriority {
		t.Errorf("priority = %q, want %q", saved.Priority, utils.DefaultPriority)
	}
	if saved.LaborCount != 0 {
		t.Errorf("labor_count = %d, want clamped to 0", saved.LaborCount)
	}
}

func TestAddActivityValidation(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")
	other := seedProject(t, "OTHER")
	foreign := seedBriefing(t, other.ID, "2025-03-10")

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing title", map[string]interface{}{"briefing_id": foreign.ID}},
		{"missing briefing", map[string]interface{}{"title": "Pour slab"}},
		{"foreign briefing", map[string]interface{}{"title": "Pour slab", "briefing_id": foreign.ID}},
		{"unknown briefing", map[string]interface{}{"title": "Pour slab", "briefing_id": 9999}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := call(t, Activities.Collection, http.MethodPost, "/api/v1/activities", asForeman(p.ID), tc.body)
			wantFail(t, resp, utils.CodeAddError)
		})
	}
	if n := countRows(t, &models.Activity{}); n != 0 {
		t.Fatalf("rejected adds wrote %d rows", n)
	}
}

func TestListActivitiesScopedAndOrdered(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")
	other := seedProject(t, "OTHER")
	b := seedBriefing(t, p.ID, "2025-03-10")
	fb := seedBriefing(t, other.ID, "2025-03-10")

	seedActivity(t, b.ID, "Snagging", "low", "15:00")
	seedActivity(t, b.ID, "Crane lift", "critical", "10:00")
	seedActivity(t, b.ID, "Brickwork", "medium", "08:00")
	seedActivity(t, b.ID, "Scaffold check", "high", "07:30")
	seedActivity(t, b.ID, "Deliveries", "high", "06:00")
	seedActivity(t, fb.ID, "Foreign works", "critical", "08:00")

	resp := call(t, Activities.Collection, http.MethodGet, "/api/v1/activities", asForeman(p.ID), nil)
	wantOK(t, resp)
	if got := respNum(t, resp, "count"); got != 5 {
		t.Fatalf("count = %d, want 5", got)
	}
	want := []string{"Crane lift", "Deliveries", "Scaffold check", "Brickwork", "Snagging"}
	got := activityTitles(t, resp)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestListActivitiesDateFilter(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")
	monday := seedBriefing(t, p.ID, "2025-03-10")
	tuesday := seedBriefing(t, p.ID, "2025-03-11")
	seedActivity(t, monday.ID, "Pour slab", "medium", "08:00")
	seedActivity(t, tuesday.ID, "Strike formwork", "medium", "08:00")

	resp := call(t, Activities.Collection, http.MethodGet, "/api/v1/activities?date=2025-03-11", asForeman(p.ID), nil)
	wantOK(t, resp)
	if got := respNum(t, resp, "count"); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
	if uk, _ := resp["date_uk"].(string); uk != "11/03/2025" {
		t.Fatalf("date_uk = %q", uk)
	}

	for _, bad := range []string{"11-03-2025", "2025-13-40", "junk"} {
		resp := call(t, Activities.Collection, http.MethodGet, "/api/v1/activities?date="+bad, asForeman(p.ID), nil)
		wantFail(t, resp, utils.CodeListError)
	}
}

// Foreign and missing ids must produce byte-identical failures so callers
// cannot probe other projects for existing ids.
func TestActivityProjectIsolation(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")
	other := seedProject(t, "OTHER")
	fb := seedBriefing(t, other.ID, "2025-03-10")
	foreign := seedActivity(t, fb.ID, "Foreign works", "high", "08:00")

	foreignGet := call(t, Activities.Collection, http.MethodGet, itemQuery("activities", "get", foreign.ID), asForeman(p.ID), nil)
	missingGet := call(t, Activities.Collection, http.MethodGet, "/api/v1/activities?action=get&id=424242", asForeman(p.ID), nil)
	wantFail(t, foreignGet, utils.CodeNotFound)
	wantFail(t, missingGet, utils.CodeNotFound)
	if foreignGet["message"] != missingGet["message"] || foreignGet["error"] != missingGet["error"] {
		t.Fatalf("foreign and missing ids are distinguishable: %v vs %v", foreignGet, missingGet)
	}

	upd := call(t, Activities.Collection, http.MethodPost, itemQuery("activities", "update", foreign.ID), asForeman(p.ID), map[string]interface{}{"title": "Hijacked"})
	wantFail(t, upd, utils.CodeNotFound)
	del := call(t, Activities.Collection, http.MethodPost, itemQuery("activities", "delete", foreign.ID), asForeman(p.ID), nil)
	wantFail(t, del, utils.CodeNotFound)

	var still models.Activity
	if err := mustDB(t).First(&still, foreign.ID).Error; err != nil {
		t.Fatalf("foreign activity gone: %v", err)
	}
	if still.Title != "Foreign works" {
		t.Fatalf("foreign activity mutated: %q", still.Title)
	}
}

func TestUpdateActivityNeverCreates(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")
	seedBriefing(t, p.ID, "2025-03-10")

	resp := call(t, Activities.Collection, http.MethodPost, "/api/v1/activities?action=update&id=31337", asForeman(p.ID), map[string]interface{}{"title": "Ghost"})
	wantFail(t, resp, utils.CodeNotFound)
	if n := countRows(t, &models.Activity{}); n != 0 {
		t.Fatalf("update of a missing id inserted %d rows", n)
	}
}

func TestUpdateActivityOverwritesInPlace(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")
	b := seedBriefing(t, p.ID, "2025-03-10")
	a := seedActivity(t, b.ID, "Pour slab", "high", "09:30")

	resp := call(t, Activities.Collection, http.MethodPost, itemQuery("activities", "update", a.ID), asForeman(p.ID), map[string]interface{}{
		"title":    "Pour slab B2",
		"priority": "CRITICAL",
		"time":     "07:05",
	})
	wantOK(t, resp)
	if msg, _ := resp["message"].(string); msg != "Activity updated successfully" {
		t.Fatalf("message = %q", msg)
	}

	var saved models.Activity
	if err := mustDB(t).First(&saved, a.ID).Error; err != nil {
		t.Fatalf("load updated activity: %v", err)
	}
	if saved.Title != "Pour slab B2" || saved.Priority != "critical" || saved.Time != "07:05" {
		t.Fatalf("row after update = %+v", saved)
	}
	// Omitted fields overwrite with their zero values; a partial body is
	// a full replacement, not a merge.
	if saved.Area != "" {
		t.Fatalf("area survived full overwrite: %q", saved.Area)
	}
	if n := countRows(t, &models.Activity{}); n != 1 {
		t.Fatalf("update changed row count to %d", n)
	}
}

func TestMoveActivityToForeignBriefingRejected(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")
	other := seedProject(t, "OTHER")
	b := seedBriefing(t, p.ID, "2025-03-10")
	fb := seedBriefing(t, other.ID, "2025-03-10")
	a := seedActivity(t, b.ID, "Pour slab", "medium", "08:00")

	resp := call(t, Activities.Collection, http.MethodPost, itemQuery("activities", "update", a.ID), asForeman(p.ID), map[string]interface{}{
		"title":       "Pour slab",
		"briefing_id": fb.ID,
	})
	wantFail(t, resp, utils.CodeUpdateError)

	var saved models.Activity
	if err := mustDB(t).First(&saved, a.ID).Error; err != nil {
		t.Fatalf("load activity: %v", err)
	}
	if saved.BriefingID != b.ID {
		t.Fatalf("activity moved across projects: briefing_id = %d", saved.BriefingID)
	}
}

func TestDeleteActivity(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")
	b := seedBriefing(t, p.ID, "2025-03-10")
	a := seedActivity(t, b.ID, "Pour slab", "medium", "08:00")

	resp := call(t, Activities.Collection, http.MethodPost, itemQuery("activities", "delete", a.ID), asForeman(p.ID), nil)
	wantOK(t, resp)
	if msg, _ := resp["message"].(string); msg != "Activity deleted successfully" {
		t.Fatalf("message = %q", msg)
	}
	wantFail(t, call(t, Activities.Collection, http.MethodGet, itemQuery("activities", "get", a.ID), asForeman(p.ID), nil), utils.CodeNotFound)
}

func TestActivityBadIDAndAction(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")

	for _, raw := range []string{"", "abc", "0", "-3", "1.5"} {
		resp := call(t, Activities.Collection, http.MethodGet, "/api/v1/activities?action=get&id="+raw, asForeman(p.ID), nil)
		wantFail(t, resp, utils.CodeInvalidID)
		if msg, _ := resp["message"].(string); msg != "A valid numeric id is required" {
			t.Fatalf("id %q: message = %q", raw, msg)
		}
	}

	resp := call(t, Activities.Collection, http.MethodGet, "/api/v1/activities?action=explode", asForeman(p.ID), nil)
	wantFail(t, resp, utils.CodeInvalidAction)
	if msg, _ := resp["message"].(string); msg != "Unknown action: explode" {
		t.Fatalf("message = %q", msg)
	}
	wantFail(t, call(t, Activities.Collection, http.MethodPost, "/api/v1/activities?action=explode", asForeman(p.ID), nil), utils.CodeInvalidAction)
}

var ukStampRe = regexp.MustCompile(`^\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}$`)

func TestEnvelopeTimestamps(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")

	resp := call(t, Activities.Collection, http.MethodGet, "/api/v1/activities", asForeman(p.ID), nil)
	wantOK(t, resp)
	stamp, _ := resp["timestamp_uk"].(string)
	if !ukStampRe.MatchString(stamp) {
		t.Fatalf("timestamp_uk = %q, want DD/MM/YYYY HH:MM:SS", stamp)
	}
	if srv, _ := resp["server_time"].(string); srv == "" {
		t.Fatalf("server_time missing: %v", resp)
	}
}
