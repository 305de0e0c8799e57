package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// =============================================================================
// SMTP Email Service Implementation
// =============================================================================

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPEmailService sends emails via SMTP.
//
// Campaign bodies are plain text. The HTML part wraps the escaped text in a
// minimal layout with a link to the recipient's waitlist status.
type SMTPEmailService struct {
	config   SMTPConfig
	baseURL  string
	layout   *template.Template
	sendMail sendMailFunc
	logger   *slog.Logger
}

// NewSMTPEmailService creates a new SMTP-based email service.
//
// Example usage:
//
//	emailService := email.NewSMTPEmailService(
//	    email.SMTPConfig{Host: "localhost", Port: 1025},
//	    "http://localhost:8080",
//	    logger,
//	)
func NewSMTPEmailService(config SMTPConfig, baseURL string, logger *slog.Logger) *SMTPEmailService {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	return &SMTPEmailService{
		config:   config,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		layout:   template.Must(template.New("campaign").Funcs(emailTemplateFuncs()).Parse(campaignLayout)),
		sendMail: smtp.SendMail,
		logger:   logger,
	}
}

// =============================================================================
// EmailService Interface Implementation
// =============================================================================

// SendCampaignEmail renders and sends one campaign message.
func (s *SMTPEmailService) SendCampaignEmail(ctx context.Context, msg CampaignMessage) error {
	statusURL := s.statusURL(msg.ReferralCode)

	data := map[string]interface{}{
		"ProjectName": msg.ProjectName,
		"Subject":     msg.Subject,
		"Body":        msg.Body,
		"StatusURL":   statusURL,
	}

	htmlBody, err := s.renderLayout(data)
	if err != nil {
		return fmt.Errorf("failed to render campaign email: %w", err)
	}

	textBody := msg.Body
	if statusURL != "" {
		textBody += fmt.Sprintf("\n\n--\nCheck your spot on the %s waitlist: %s\n", msg.ProjectName, statusURL)
	}

	return s.send(ctx, Email{
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// =============================================================================
// Internal Methods
// =============================================================================

func (s *SMTPEmailService) statusURL(code string) string {
	if code == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/waitlist/%s", s.baseURL, code)
}

// send sends an email via SMTP.
func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := s.buildMessage(email)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Mailhog needs no auth
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.sendMail(addr, auth, s.config.From, []string{email.To}, msg); err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Debug("email sent",
		"to", email.To,
		"subject", email.Subject,
	)
	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPEmailService) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", sanitizeHeader(email.Subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")

	boundary := "===============WAITLIST_BOUNDARY==============="
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.TextBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTMLBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

// sanitizeHeader strips CR and LF so user text cannot inject headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(v)
}

func (s *SMTPEmailService) renderLayout(data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.layout.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// Template
// =============================================================================

const campaignLayout = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
<h2>{{.Subject}}</h2>
<div>{{paragraphs .Body}}</div>
{{if .StatusURL}}<p style="color: #6b7280; font-size: 13px;">Check your spot on the {{.ProjectName}} waitlist: <a href="{{.StatusURL}}">{{.StatusURL}}</a></p>{{end}}
<p style="color: #9ca3af; font-size: 12px;">&copy; {{currentYear}} {{.ProjectName}}</p>
</body>
</html>`

// emailTemplateFuncs returns template functions available in the layout.
func emailTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		// paragraphs escapes plain text and turns blank-line separated blocks into <p>.
		"paragraphs": func(text string) template.HTML {
			var b strings.Builder
			for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
				para = strings.TrimSpace(para)
				if para == "" {
					continue
				}
				escaped := template.HTMLEscapeString(para)
				b.WriteString("<p>")
				b.WriteString(strings.ReplaceAll(escaped, "\n", "<br>"))
				b.WriteString("</p>")
			}
			return template.HTML(b.String())
		},
		"currentYear": func() int {
			return time.Now().Year()
		},
	}
}

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ EmailService = (*SMTPEmailService)(nil)
