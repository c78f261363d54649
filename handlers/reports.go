package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"p9e.in/dabs/config"
	"p9e.in/dabs/middleware"
	"p9e.in/dabs/models"
	"p9e.in/dabs/pkg/logbook"
	"p9e.in/dabs/pkg/mailer"
	"p9e.in/dabs/utils"
)

// dayReport is everything the day report renders for one (project, date).
type dayReport struct {
	Project        models.Project
	Briefing       models.Briefing
	Activities     []models.Activity
	Subcontractors []subcontractorOut
}

// BriefingReport streams the day report as a download.
// GET /api/v1/reports/briefing?date=YYYY-MM-DD&format=excel|csv|pdf
func BriefingReport(w http.ResponseWriter, r *http.Request) {
	s, ok := scopeOf(w, r)
	if !ok {
		return
	}
	if !dbReady(w) {
		return
	}

	date, f := dateParam(r, utils.CodeGetError)
	if f != nil {
		endpointFail(w, s, "reports", "export", f)
		return
	}

	rep, err := buildDayReport(s, date)
	if err != nil {
		endpointFail(w, s, "reports", "export", faultDB(utils.CodeGetError, "Could not build report", err))
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "", "excel", "xlsx":
		xf, err := buildReportXLSX(rep, date)
		if err != nil {
			endpointFail(w, s, "reports", "export", faultDB(utils.CodeGetError, "Could not build report", err))
			return
		}
		buf, err := xf.WriteToBuffer()
		if err != nil {
			endpointFail(w, s, "reports", "export", faultDB(utils.CodeGetError, "Could not build report", err))
			return
		}
		sendDownload(w, "briefing_"+date+".xlsx",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
		logbook.Endpoint("reports").Event("export",
			"user", s.Username, "project_id", s.ProjectID, "date", date, "format", "excel")

	case "csv":
		data, err := buildReportCSV(rep, date)
		if err != nil {
			endpointFail(w, s, "reports", "export", faultDB(utils.CodeGetError, "Could not build report", err))
			return
		}
		sendDownload(w, "briefing_"+date+".csv", "text/csv", data)
		logbook.Endpoint("reports").Event("export",
			"user", s.Username, "project_id", s.ProjectID, "date", date, "format", "csv")

	case "pdf":
		endpointFail(w, s, "reports", "export", faultBad(utils.CodeGetError,
			"PDF export requires additional PDF library setup; use excel or csv"))

	default:
		endpointFail(w, s, "reports", "export", faultBad(utils.CodeGetError, "Unknown format: "+format))
	}
}

// EmailBriefingReport builds the XLSX and mails it to the given recipients,
// recording the attempt in the report history whatever the outcome.
// POST /api/v1/reports/briefing/email {date, recipients, message?}
func EmailBriefingReport(w http.ResponseWriter, r *http.Request) {
	s, ok := scopeOf(w, r)
	if !ok {
		return
	}
	if !dbReady(w) {
		return
	}

	var in struct {
		Date       string   `json:"date"`
		Recipients []string `json:"recipients"`
		Message    string   `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		endpointFail(w, s, "reports", "email", faultBad(utils.CodeUpdateError, "Invalid request body"))
		return
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = utils.Today()
	} else if !utils.ValidDate(date) {
		endpointFail(w, s, "reports", "email",
			faultBad(utils.CodeUpdateError, "Invalid date", "date must be YYYY-MM-DD"))
		return
	}

	recipients := make([]string, 0, len(in.Recipients))
	for _, addr := range in.Recipients {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if !utils.ValidEmail(addr) {
			endpointFail(w, s, "reports", "email",
				faultBad(utils.CodeUpdateError, "Invalid recipient address: "+addr))
			return
		}
		recipients = append(recipients, addr)
	}
	if len(recipients) == 0 {
		endpointFail(w, s, "reports", "email", faultBad(utils.CodeUpdateError, "At least one recipient is required"))
		return
	}

	rep, err := buildDayReport(s, date)
	if err != nil {
		endpointFail(w, s, "reports", "email", faultDB(utils.CodeUpdateError, "Could not build report", err))
		return
	}
	xf, err := buildReportXLSX(rep, date)
	if err != nil {
		endpointFail(w, s, "reports", "email", faultDB(utils.CodeUpdateError, "Could not build report", err))
		return
	}
	buf, err := xf.WriteToBuffer()
	if err != nil {
		endpointFail(w, s, "reports", "email", faultDB(utils.CodeUpdateError, "Could not build report", err))
		return
	}

	subject := "Daily Activity Briefing - " + utils.UKDate(date)
	settings, err := loadEmailSettings()
	if err != nil {
		recordReportEmail(s, date, recipients, subject, err)
		endpointFail(w, s, "reports", "email", faultDB(utils.CodeUpdateError, "Could not load email settings", err))
		return
	}

	msg := mailer.Message{
		To:       recipients,
		Subject:  subject,
		HTMLBody: reportEmailBody(rep, date, strings.TrimSpace(in.Message)),
		Attachments: []mailer.Attachment{{
			Filename:    "briefing_" + date + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Content:     buf.Bytes(),
		}},
	}

	sendErr := mailer.Send(settings, msg)
	recordReportEmail(s, date, recipients, subject, sendErr)
	if sendErr != nil {
		logbook.Endpoint("email").Failure("report", sendErr, "date", date, "recipients", len(recipients))
		endpointFail(w, s, "reports", "email", faultDB(utils.CodeUpdateError, "Report email could not be sent", sendErr))
		return
	}

	logbook.Endpoint("email").Event("report", "date", date, "recipients", len(recipients))
	auditLog(s, "reports", "email", rep.Briefing.ID, map[string]interface{}{
		"date":       date,
		"recipients": recipients,
		"subject":    subject,
	})
	endpointOK(w, s, "reports", "email", map[string]interface{}{
		"message":    fmt.Sprintf("Report for %s sent to %d recipient(s)", utils.UKDate(date), len(recipients)),
		"recipients": recipients,
	}, "date", date)
}

func buildDayReport(s middleware.Scope, date string) (dayReport, error) {
	var rep dayReport

	b, err := briefingFor(s.ProjectID, date)
	if err != nil {
		return rep, err
	}
	rep.Briefing = b

	// The project name is cosmetic on the report; a missing row is not fatal.
	config.DB.First(&rep.Project, s.ProjectID)

	activities := []models.Activity{}
	if err := config.DB.Where("briefing_id = ?", b.ID).Order(activityOrder).Find(&activities).Error; err != nil {
		return rep, err
	}
	rep.Activities = activities

	subs := []models.Subcontractor{}
	err = config.DB.
		Preload("Contacts", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("project_id = ?", s.ProjectID).
		Order(subcontractorOrder).
		Find(&subs).Error
	if err != nil {
		return rep, err
	}
	for _, sc := range subs {
		tasks, err := tasksFor(sc.ID, date)
		if err != nil {
			return rep, err
		}
		rep.Subcontractors = append(rep.Subcontractors, subcontractorRecord(sc, tasks))
	}
	return rep, nil
}

var activityColumns = []string{"Time", "Title", "Area", "Priority", "Labor", "Contractors", "Assigned To"}
var subcontractorColumns = []string{"Name", "Trade", "Status", "Contact", "Phone", "Tasks"}

func buildReportXLSX(rep dayReport, date string) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Briefing"

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	sectionStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E7E6E6"}, Pattern: 1},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	title := "Daily Activity Briefing"
	if rep.Project.Name != "" {
		title = rep.Project.Name + " - " + title
	}
	f.SetCellValue(sheet, "A1", title)
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)
	f.SetRowHeight(sheet, 1, 30)
	f.SetCellValue(sheet, "A2", "Date: "+utils.UKDate(date))

	row := 4
	row = writeSection(f, sheet, sectionStyle, row, "Overview", rep.Briefing.Overview)
	row = writeSection(f, sheet, sectionStyle, row, "Safety", rep.Briefing.SafetyInfo)

	f.SetCellValue(sheet, cellAt(1, row), "Activities")
	f.SetCellStyle(sheet, cellAt(1, row), cellAt(1, row), sectionStyle)
	row++
	for i, h := range activityColumns {
		cell := cellAt(i+1, row)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	row++
	for _, a := range rep.Activities {
		values := []interface{}{a.Time, a.Title, a.Area, a.Priority, a.LaborCount, a.Contractors, a.AssignedTo}
		for i, v := range values {
			f.SetCellValue(sheet, cellAt(i+1, row), v)
		}
		row++
	}
	row++

	f.SetCellValue(sheet, cellAt(1, row), "Subcontractors")
	f.SetCellStyle(sheet, cellAt(1, row), cellAt(1, row), sectionStyle)
	row++
	for i, h := range subcontractorColumns {
		cell := cellAt(i+1, row)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	row++
	for _, sc := range rep.Subcontractors {
		values := []interface{}{sc.Name, sc.Trade, sc.Status, sc.ContactName, sc.ContactPhone, strings.Join(sc.Tasks, "; ")}
		for i, v := range values {
			f.SetCellValue(sheet, cellAt(i+1, row), v)
		}
		row++
	}

	for i := 1; i <= len(activityColumns); i++ {
		col, _ := excelize.ColumnNumberToName(i)
		f.SetColWidth(sheet, col, col, 22)
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

func buildReportCSV(rep dayReport, date string) ([]byte, error) {
	var buf bytes.Buffer
	wr := csv.NewWriter(&buf)

	wr.Write([]string{"Daily Activity Briefing", utils.UKDate(date)})
	wr.Write([]string{})
	wr.Write([]string{"Overview", rep.Briefing.Overview})
	wr.Write([]string{"Safety", rep.Briefing.SafetyInfo})
	wr.Write([]string{})
	wr.Write([]string{"Activities"})
	wr.Write(activityColumns)
	for _, a := range rep.Activities {
		wr.Write([]string{a.Time, a.Title, a.Area, a.Priority, strconv.Itoa(a.LaborCount), a.Contractors, a.AssignedTo})
	}
	wr.Write([]string{})
	wr.Write([]string{"Subcontractors"})
	wr.Write(subcontractorColumns)
	for _, sc := range rep.Subcontractors {
		wr.Write([]string{sc.Name, sc.Trade, sc.Status, sc.ContactName, sc.ContactPhone, strings.Join(sc.Tasks, "; ")})
	}

	wr.Flush()
	return buf.Bytes(), wr.Error()
}

func reportEmailBody(rep dayReport, date, note string) string {
	var b strings.Builder
	b.WriteString("<h2>Daily Activity Briefing - " + utils.UKDate(date) + "</h2>")
	if rep.Project.Name != "" {
		b.WriteString("<p><strong>" + rep.Project.Name + "</strong></p>")
	}
	if note != "" {
		b.WriteString("<p>" + note + "</p>")
	}
	b.WriteString(fmt.Sprintf("<p>%d activities and %d subcontractors on site. The full report is attached.</p>",
		len(rep.Activities), len(rep.Subcontractors)))
	if rep.Briefing.Overview != "" {
		b.WriteString("<p><strong>Overview:</strong> " + rep.Briefing.Overview + "</p>")
	}
	if rep.Briefing.SafetyInfo != "" {
		b.WriteString("<p><strong>Safety:</strong> " + rep.Briefing.SafetyInfo + "</p>")
	}
	return b.String()
}

// recordReportEmail keeps the report history row, success or not. History
// failures are logged and never fail the send they describe.
func recordReportEmail(s middleware.Scope, date string, recipients []string, subject string, sendErr error) {
	row := models.ReportEmail{
		ProjectID:  s.ProjectID,
		ReportDate: date,
		Recipients: pq.StringArray(recipients),
		Subject:    subject,
		SentBy:     s.Username,
		Succeeded:  sendErr == nil,
	}
	if sendErr != nil {
		row.Error = sendErr.Error()
	}
	if err := config.DB.Create(&row).Error; err != nil {
		logbook.Endpoint("reports").Failure("history", err, "date", date)
	}
}

func sendDownload(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeSection(f *excelize.File, sheet string, style, row int, heading, text string) int {
	f.SetCellValue(sheet, cellAt(1, row), heading)
	f.SetCellStyle(sheet, cellAt(1, row), cellAt(1, row), style)
	row++
	f.SetCellValue(sheet, cellAt(1, row), text)
	return row + 2
}

func cellAt(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}
