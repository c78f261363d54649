package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"p9e.in/dabs/middleware"
	"p9e.in/dabs/models"
	"p9e.in/dabs/utils"
)

// rawCall is for the download paths, which stream file bytes instead of a
// JSON envelope.
func rawCall(t *testing.T, h http.HandlerFunc, method, target string, s middleware.Scope) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req = middleware.WithScope(req, s)
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func seedReportDay(t *testing.T, projectID uint, date string) {
	t.Helper()
	b := models.Briefing{ProjectID: projectID, Date: date, Overview: "Crane on site from 07:00.", SafetyInfo: "Harness checks at height."}
	if err := mustDB(t).Create(&b).Error; err != nil {
		t.Fatalf("seed briefing: %v", err)
	}
	seedActivity(t, b.ID, "Crane lift", "critical", "10:00")
	seedActivity(t, b.ID, "Brickwork", "medium", "08:00")

	sc := models.Subcontractor{ProjectID: projectID, Name: "Apex Steel", Trade: "Steelwork", Status: "Active"}
	if err := mustDB(t).Create(&sc).Error; err != nil {
		t.Fatalf("seed subcontractor: %v", err)
	}
	contact := models.SubcontractorContact{SubcontractorID: sc.ID, Name: "Dana Hale", Phone: "07700 900123"}
	if err := mustDB(t).Create(&contact).Error; err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	for _, task := range []string{"Erect columns", "Torque checks"} {
		row := models.SubcontractorTask{SubcontractorID: sc.ID, TaskDate: date, TaskDescription: task}
		if err := mustDB(t).Create(&row).Error; err != nil {
			t.Fatalf("seed task: %v", err)
		}
	}
}

func TestBriefingReportCSV(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")
	seedReportDay(t, p.ID, "2025-03-10")

	w := rawCall(t, BriefingReport, http.MethodGet, "/api/v1/reports/briefing?date=2025-03-10&format=csv", asForeman(p.ID))
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "briefing_2025-03-10.csv") {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	body := w.Body.String()
	for _, want := range []string{
		"Daily Activity Briefing",
		"10/03/2025",
		"Crane on site from 07:00.",
		"Crane lift",
		"Apex Steel",
		"Erect columns; Torque checks",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("csv missing %q", want)
		}
	}
	// Critical activities sort ahead of medium ones.
	if strings.Index(body, "Crane lift") > strings.Index(body, "Brickwork") {
		t.Error("csv rows not in priority order")
	}
}

func TestBriefingReportXLSX(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")
	seedReportDay(t, p.ID, "2025-03-10")

	w := rawCall(t, BriefingReport, http.MethodGet, "/api/v1/reports/briefing?date=2025-03-10&format=excel", asForeman(p.ID))
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("Content-Type = %q", ct)
	}

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not a workbook: %v", err)
	}
	defer f.Close()

	if title, _ := f.GetCellValue("Briefing", "A1"); !strings.Contains(title, "Daily Activity Briefing") {
		t.Fatalf("A1 = %q", title)
	}
	if date, _ := f.GetCellValue("Briefing", "A2"); date != "Date: 10/03/2025" {
		t.Fatalf("A2 = %q", date)
	}

	rows, err := f.GetRows("Briefing")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	flat := ""
	for _, r := range rows {
		flat += strings.Join(r, "|") + "\n"
	}
	for _, want := range []string{"Overview", "Safety", "Crane lift", "Apex Steel", "Dana Hale"} {
		if !strings.Contains(flat, want) {
			t.Errorf("workbook missing %q", want)
		}
	}

	for _, name := range f.GetSheetList() {
		if name == "Sheet1" {
			t.Error("default Sheet1 left in workbook")
		}
	}
}

func TestBriefingReportBadRequests(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")

	resp := call(t, BriefingReport, http.MethodGet, "/api/v1/reports/briefing?format=pdf", asForeman(p.ID), nil)
	wantFail(t, resp, utils.CodeGetError)
	if msg, _ := resp["message"].(string); !strings.Contains(msg, "PDF export requires additional PDF library setup") {
		t.Fatalf("pdf message = %q", msg)
	}

	resp = call(t, BriefingReport, http.MethodGet, "/api/v1/reports/briefing?format=docx", asForeman(p.ID), nil)
	wantFail(t, resp, utils.CodeGetError)
	if msg, _ := resp["message"].(string); msg != "Unknown format: docx" {
		t.Fatalf("format message = %q", msg)
	}

	wantFail(t, call(t, BriefingReport, http.MethodGet, "/api/v1/reports/briefing?date=bad-date", asForeman(p.ID), nil), utils.CodeGetError)
}

func TestEmailBriefingReportValidation(t *testing.T) {
	openTestDB(t)
	p := seedProject(t, "MAIN")

	resp := call(t, EmailBriefingReport, http.MethodPost, "/api/v1/reports/briefing/email", asForeman(p.ID), map[string]interface{}{
		"date":       "2025-03-10",
		"recipients": []string{"pm@example.com", "not-an-address"},
	})
	wantFail(t, resp, utils.CodeUpdateError)
	if msg, _ := resp["message"].(string); msg != "Invalid recipient address: not-an-address" {
		t.Fatalf("message = %q", msg)
	}

	resp = call(t, EmailBriefingReport, http.MethodPost, "/api/v1/reports/briefing/email", asForeman(p.ID), map[string]interface{}{
		"date":       "2025-03-10",
		"recipients": []string{"  ", ""},
	})
	wantFail(t, resp, utils.CodeUpdateError)
	if msg, _ := resp["message"].(string); msg != "At least one recipient is required" {
		t.Fatalf("message = %q", msg)
	}

	// Without a settings row the send fails cleanly before any connection.
	resp = call(t, EmailBriefingReport, http.MethodPost, "/api/v1/reports/briefing/email", asForeman(p.ID), map[string]interface{}{
		"date":       "2025-03-10",
		"recipients": []string{"pm@example.com"},
	})
	wantFail(t, resp, utils.CodeUpdateError)
	if msg, _ := resp["message"].(string); msg != "Could not load email settings" {
		t.Fatalf("message = %q", msg)
	}
}
