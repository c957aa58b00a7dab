package services

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"strings"
	texttemplate "text/template"

	"eviction_intake_go/config"
	"eviction_intake_go/models"

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
		log.Printf("Email logged successfully (test mode - not actually sent)")
		return nil
	}

	if cfg.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY not configured")
	}

	client := resend.NewClient(cfg.ResendAPIKey)

	fromAddress := fmt.Sprintf("%s <%s>", cfg.EmailFromName, cfg.EmailFrom)

	params := &resend.SendEmailRequest{
		From:    fromAddress,
		To:      email.To,
		Subject: email.Subject,
	}

	if email.HTMLBody != "" {
		params.Html = email.HTMLBody
	}
	if email.TextBody != "" {
		params.Text = email.TextBody
	}

	if params.Html == "" && params.Text == "" {
		return fmt.Errorf("email must have either HTMLBody or TextBody")
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
	log.Printf("\n%s\nEMAIL (Test Mode - Not Actually Sent)\n%s", separator, separator)
	log.Printf("To: %v", email.To)
	log.Printf("Subject: %s", email.Subject)
	log.Printf("\n--- TEXT BODY ---\n%s", email.TextBody)
	log.Printf("\n--- HTML BODY (first 500 chars) ---\n%s...", truncate(email.HTMLBody, 500))
	log.Printf("%s\n", separator)
}

// truncate truncates a string to a maximum length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// SendEmailAsync sends an email in a goroutine so handlers do not wait on Resend
func SendEmailAsync(cfg *config.Config, email *Email) {
	// Copy to avoid races with the caller
	emailCopy := &Email{
		To:       append([]string{}, email.To...),
		Subject:  email.Subject,
		HTMLBody: email.HTMLBody,
		TextBody: email.TextBody,
	}

	go func(cfg *config.Config, email *Email) {
		if err := SendEmail(cfg, email); err != nil {
			log.Printf("Error sending async email: %v", err)
		}
	}(cfg, emailCopy)
}

// IntakeEmailData contains data for the clerk intake notification
type IntakeEmailData struct {
	Case     *models.Case
	Location string
	Files    []FileOutcome
	Failed   int
}

var intakeHTMLTemplate = template.Must(template.New("intake_html").Funcs(template.FuncMap{
	"money": formatMoney,
}).Parse(`<h2>New eviction filing {{ .Case.ID }}</h2>
<p><strong>Landlord:</strong> {{ .Case.Landlord.Name }}<br>
<strong>Tenant:</strong> {{ .Case.Tenant.Name }}<br>
<strong>Property:</strong> {{ .Case.Property.Address }}<br>
<strong>Amount owed:</strong> {{ money .Case.AmountOwed }}</p>
<p><a href="{{ .Location }}">View case files</a></p>
{{- if .Failed }}
<p style="color:#900">{{ .Failed }} file(s) could not be stored and need attention.</p>
{{- end }}
<ul>
{{- range .Files }}
<li>{{ .Path }}: {{ if .Success }}stored{{ else }}FAILED ({{ .Error }}){{ end }}</li>
{{- end }}
</ul>`))

var intakeTextTemplate = texttemplate.Must(texttemplate.New("intake_text").Funcs(texttemplate.FuncMap{
	"money": formatMoney,
}).Parse(`New eviction filing {{ .Case.ID }}

Landlord: {{ .Case.Landlord.Name }}
Tenant: {{ .Case.Tenant.Name }}
Property: {{ .Case.Property.Address }}
Amount owed: {{ money .Case.AmountOwed }}

Case files: {{ .Location }}
{{ range .Files }}
- {{ .Path }}: {{ if .Success }}stored{{ else }}FAILED ({{ .Error }}){{ end }}
{{- end }}
`))

// BuildIntakeNotificationEmail creates the clerk notification for a
// synchronized case
func BuildIntakeNotificationEmail(clerkEmail string, c *models.Case, result *SyncResult) (*Email, error) {
	data := IntakeEmailData{
		Case:     c,
		Location: result.Location,
		Files:    result.Files,
		Failed:   result.FailedFiles(),
	}

	var htmlBody, textBody bytes.Buffer
	if err := intakeHTMLTemplate.Execute(&htmlBody, data); err != nil {
		return nil, fmt.Errorf("failed to render intake email: %w", err)
	}
	if err := intakeTextTemplate.Execute(&textBody, data); err != nil {
		return nil, fmt.Errorf("failed to render intake email: %w", err)
	}

	subject := fmt.Sprintf("New eviction filing %s", c.ID)
	if data.Failed > 0 {
		subject += fmt.Sprintf(" (%d file(s) failed)", data.Failed)
	}

	return &Email{
		To:       []string{clerkEmail},
		Subject:  subject,
		HTMLBody: htmlBody.String(),
		TextBody: textBody.String(),
	}, nil
}
