// Package email sends transactional notification emails.
//
// The Service interface has a single SMTP implementation, which works
// with Mailhog in development (no auth) and any standard SMTP relay in
// production.
package email

import (
	"context"
)

// Service sends notification emails. All methods honor context
// deadlines and cancellation.
type Service interface {
	// SendWorkspaceAddedEmail notifies a user that they were added to
	// a workspace.
	SendWorkspaceAddedEmail(ctx context.Context, to, name, workspaceName, addedByName string) error
}

// Email is a single message.
type Email struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// SMTPConfig holds SMTP server settings.
type SMTPConfig struct {
	Host     string // e.g. "localhost" for Mailhog
	Port     int    // e.g. 1025 for Mailhog
	Username string // empty for Mailhog
	Password string // empty for Mailhog
	From     string // sender address
	FromName string // sender display name
}

const (
	// DefaultFromEmail is the fallback sender address.
	DefaultFromEmail = "noreply@taskline.app"

	// DefaultFromName is the fallback sender display name.
	DefaultFromName = "Taskline"
)
