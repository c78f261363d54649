package mailer

import (
	"strings"
	"testing"

	"p9e.in/dabs/models"
)

func testSettings() Settings {
	return Settings{
		SMTPEnabled: true,
		Host:        "smtp.example.com",
		Port:        587,
		Encryption:  "tls",
		Auth:        true,
		Username:    "reports@example.com",
		Password:    "secret",
		FromEmail:   "reports@example.com",
		FromName:    "DABS Reports",
	}
}

func TestBuildFlatHTMLMessage(t *testing.T) {
	raw, err := Build(testSettings(), Message{
		To:       []string{"pm@example.com", "foreman@example.com"},
		Subject:  "Daily Briefing",
		HTMLBody: "<p>All quiet on site.</p>",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out := string(raw)

	for _, want := range []string{
		"From: DABS Reports <reports@example.com>\r\n",
		"To: pm@example.com, foreman@example.com\r\n",
		"Subject: Daily Briefing\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: text/html; charset=\"UTF-8\"\r\n",
		"<p>All quiet on site.</p>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("message missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "multipart") {
		t.Error("flat message should not be multipart")
	}
}

func TestBuildWithAttachment(t *testing.T) {
	raw, err := Build(testSettings(), Message{
		To:       []string{"pm@example.com"},
		Subject:  "Daily Briefing 27/06/2025",
		HTMLBody: "<p>Report attached.</p>",
		Attachments: []Attachment{
			{
				Filename:    "briefing_2025-06-27.xlsx",
				ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				Content:     []byte("not really a spreadsheet"),
			},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out := string(raw)

	if !strings.Contains(out, "Content-Type: multipart/mixed; boundary=") {
		t.Errorf("expected multipart/mixed message:\n%s", out)
	}
	if !strings.Contains(out, `filename="briefing_2025-06-27.xlsx"`) {
		t.Error("attachment filename missing from disposition header")
	}
	if !strings.Contains(out, "Content-Transfer-Encoding: base64") {
		t.Error("attachment should be base64 encoded")
	}
	// base64("not really a spreadsheet")
	if !strings.Contains(out, "bm90IHJlYWxseSBhIHNwcmVhZHNoZWV0") {
		t.Error("attachment payload missing or mis-encoded")
	}
	if !strings.Contains(out, "<p>Report attached.</p>") {
		t.Error("HTML part missing")
	}
}

func TestBuildWrapsLongAttachmentLines(t *testing.T) {
	content := make([]byte, 600)
	for i := range content {
		content[i] = byte('a' + i%26)
	}
	raw, err := Build(testSettings(), Message{
		To:          []string{"pm@example.com"},
		Subject:     "wrap",
		HTMLBody:    "<p>x</p>",
		Attachments: []Attachment{{Filename: "big.bin", Content: content}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, line := range strings.Split(string(raw), "\r\n") {
		if len(line) > 78 {
			t.Fatalf("line exceeds RFC wrap width (%d): %q", len(line), line)
		}
	}
}

func TestSendRejectsEmptyRecipients(t *testing.T) {
	err := Send(testSettings(), Message{Subject: "x", HTMLBody: "y"})
	if err == nil {
		t.Fatal("expected error for empty recipient list")
	}
}

func TestSendRejectsMissingFrom(t *testing.T) {
	cfg := testSettings()
	cfg.FromEmail = ""
	err := Send(cfg, Message{To: []string{"a@example.com"}, Subject: "x"})
	if err == nil {
		t.Fatal("expected error for missing from address")
	}
}

func TestFromModelRevealsObscuredPassword(t *testing.T) {
	row := models.EmailSettings{
		SMTPEnabled:    true,
		SMTPHost:       "smtp.example.com",
		SMTPPort:       465,
		SMTPEncryption: "ssl",
		SMTPAuth:       true,
		SMTPUsername:   "user",
		FromEmail:      "noreply@example.com",
		FromName:       "Site",
	}
	row.ObscurePassword("hunter2")

	cfg := FromModel(row)
	if cfg.Password != "hunter2" {
		t.Errorf("Password = %q, expected decoded plain text", cfg.Password)
	}
	if cfg.Host != "smtp.example.com" || cfg.Port != 465 || cfg.Encryption != "ssl" {
		t.Errorf("settings not carried over: %+v", cfg)
	}
}
