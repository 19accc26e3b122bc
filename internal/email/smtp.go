package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/mwalcott/taskline/internal/metrics"
)

// workspaceAddedHTML keeps the only email template inline rather than
// on disk. Mail clients get a text/plain alternative alongside it.
const workspaceAddedHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>You've been added to {{.WorkspaceName}}</h2>
  <p>Hi {{.Name}},</p>
  <p>{{.AddedByName}} added you to the workspace <strong>{{.WorkspaceName}}</strong> on Taskline.</p>
  <p><a href="{{.WorkspaceURL}}">Open the workspace</a></p>
  <p>Thanks,<br>The Taskline Team</p>
</body>
</html>`

// SMTPService sends emails over plain SMTP.
type SMTPService struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	logger    *slog.Logger
}

// NewSMTPService creates an SMTP-backed email service. baseURL is the
// application's public URL, used to build links in message bodies.
func NewSMTPService(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPService, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("workspace_added").Parse(workspaceAddedHTML)
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	return &SMTPService{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		logger:    logger,
	}, nil
}

// SendWorkspaceAddedEmail notifies a user that they were added to a workspace.
func (s *SMTPService) SendWorkspaceAddedEmail(ctx context.Context, to, name, workspaceName, addedByName string) error {
	data := map[string]any{
		"Name":          name,
		"WorkspaceName": workspaceName,
		"AddedByName":   addedByName,
		"WorkspaceURL":  s.baseURL + "/workspaces",
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "workspace_added", data); err != nil {
		return fmt.Errorf("render workspace added email: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

%s added you to the workspace "%s" on Taskline.

Open it here: %s/workspaces

Thanks,
The Taskline Team
`, name, addedByName, workspaceName, s.baseURL)

	msg := Email{
		To:       to,
		Subject:  fmt.Sprintf("You've been added to %s", workspaceName),
		HTMLBody: buf.String(),
		TextBody: textBody,
	}

	return s.send(ctx, msg)
}

func (s *SMTPService) send(ctx context.Context, email Email) error {
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

	if err := smtp.SendMail(addr, auth, s.config.From, []string{email.To}, msg); err != nil {
		metrics.EmailsSent.WithLabelValues("error").Inc()
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("send email: %w", err)
	}

	metrics.EmailsSent.WithLabelValues("success").Inc()
	s.logger.Info("email sent", "to", email.To, "subject", email.Subject)
	return nil
}

// buildMessage constructs the raw multipart message with headers.
func (s *SMTPService) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	boundary := "===============TASKLINE_BOUNDARY==============="
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

var _ Service = (*SMTPService)(nil)
