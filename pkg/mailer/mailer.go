// Package mailer sends HTML mail with optional attachments using the
// stored email settings: authenticated SMTP when enabled, the local MTA
// otherwise. Callers get a plain success/failure error and log attempts
// themselves.
package mailer

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"p9e.in/dabs/models"
)

// Settings is the live mail configuration with the password revealed.
type Settings struct {
	SMTPEnabled bool
	Host        string
	Port        int
	Encryption  string // none | tls | ssl
	Auth        bool
	Username    string
	Password    string
	FromEmail   string
	FromName    string
}

// FromModel converts the stored settings row, decoding the obscured
// password.
func FromModel(m models.EmailSettings) Settings {
	return Settings{
		SMTPEnabled: m.SMTPEnabled,
		Host:        m.SMTPHost,
		Port:        m.SMTPPort,
		Encryption:  m.SMTPEncryption,
		Auth:        m.SMTPAuth,
		Username:    m.SMTPUsername,
		Password:    m.PlainPassword(),
		FromEmail:   m.FromEmail,
		FromName:    m.FromName,
	}
}

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Message struct {
	To          []string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Send delivers msg and reports failure as an error.
func Send(cfg Settings, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}
	if cfg.FromEmail == "" {
		return fmt.Errorf("from address not configured")
	}

	raw, err := Build(cfg, msg)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	if !cfg.SMTPEnabled {
		// Legacy path: hand the message to the local MTA, no auth.
		if err := smtp.SendMail("localhost:25", nil, cfg.FromEmail, msg.To, raw); err != nil {
			return fmt.Errorf("local mail send: %w", err)
		}
		return nil
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Auth && cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	if strings.EqualFold(cfg.Encryption, "ssl") {
		return sendImplicitTLS(addr, cfg.Host, auth, cfg.FromEmail, msg.To, raw)
	}

	// smtp.SendMail upgrades to STARTTLS when the server offers it, which
	// covers both the "tls" and "none" settings.
	if err := smtp.SendMail(addr, auth, cfg.FromEmail, msg.To, raw); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Build renders the full message, headers included. Messages without
// attachments stay a flat HTML body; with attachments the body becomes
// multipart/mixed with base64 parts.
func Build(cfg Settings, msg Message) ([]byte, error) {
	var buf bytes.Buffer

	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachments) == 0 {
		buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(msg.HTMLBody)
		return buf.Bytes(), nil
	}

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=\"UTF-8\"")
	part, err := writer.CreatePart(htmlHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(msg.HTMLBody)); err != nil {
		return nil, err
	}

	for _, att := range msg.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", contentType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, att.Content); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBase64 emits base64 content wrapped at 76 columns (RFC 2045).
func writeBase64(w io.Writer, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:76]); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", encoded)
	return err
}

// sendImplicitTLS handles encryption=ssl servers (TLS from the first byte,
// typically port 465) where smtp.SendMail's STARTTLS flow cannot work.
func sendImplicitTLS(addr, host string, auth smtp.Auth, from string, to []string, raw []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}
