package services

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"strings"

	"case_portal_go/config"

	"github.com/resend/resend-go/v2"
)

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// SendEmail sends an email using Resend API
func SendEmail(cfg *config.Config, email *Email) error {
	// In development mode, log the email instead of sending
	if cfg.EmailTestMode {
		logEmailToConsole(email)
		return nil
	}

	if cfg.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY not configured")
	}
	if email.HTMLBody == "" && email.TextBody == "" {
		return fmt.Errorf("email must have either HTMLBody or TextBody")
	}

	client := resend.NewClient(cfg.ResendAPIKey)
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", cfg.EmailFromName, cfg.EmailFrom),
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTMLBody,
		Text:    email.TextBody,
	}

	sent, err := client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}

	log.Printf("Email sent successfully via Resend (ID: %s) to: %v", sent.Id, email.To)
	return nil
}

// logEmailToConsole logs email details to console in development mode
func logEmailToConsole(email *Email) {
	separator := strings.Repeat("=", 80)
	log.Printf("\n%s\nEMAIL (test mode, not sent)\n%s", separator, separator)
	log.Printf("To: %v", email.To)
	log.Printf("Subject: %s", email.Subject)
	log.Printf("\n--- TEXT BODY ---\n%s", email.TextBody)
	log.Printf("\n--- HTML BODY (first 500 chars) ---\n%s...", truncate(email.HTMLBody, 500))
	log.Printf("%s\n", separator)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// CaseAssignedEmailData feeds the assignment email
type CaseAssignedEmailData struct {
	HandlerName string
	CaseTitle   string
	CaseURL     string
}

var caseAssignedHTML = template.Must(template.New("case_assigned").Parse(`<p>Hello {{.HandlerName}},</p>
<p>A new case (<strong>{{.CaseTitle}}</strong>) has been assigned to you.</p>
<p><a href="{{.CaseURL}}">Open the case</a></p>`))

// BuildCaseAssignedEmail creates the notice sent to a handler on assignment
func BuildCaseAssignedEmail(to string, data CaseAssignedEmailData) (*Email, error) {
	var buf bytes.Buffer
	if err := caseAssignedHTML.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render assignment email: %w", err)
	}
	return &Email{
		To:       []string{to},
		Subject:  "New case assigned: " + data.CaseTitle,
		HTMLBody: buf.String(),
		TextBody: fmt.Sprintf("Hello %s, a new case (%s) has been assigned to you. Please check the portal: %s",
			data.HandlerName, data.CaseTitle, data.CaseURL),
	}, nil
}
