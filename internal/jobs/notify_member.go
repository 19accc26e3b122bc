// Package jobs holds the background job handlers registered with the worker.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mwalcott/taskline/internal/email"
	"github.com/mwalcott/taskline/internal/repository"
	"github.com/mwalcott/taskline/internal/worker"
)

// NotifyMemberAddedHandler emails a user after they are added to a
// workspace. The email is best-effort and runs off the request path so
// a slow or down SMTP server never blocks the API.
type NotifyMemberAddedHandler struct {
	queries *repository.Queries
	emails  email.Service
	logger  *slog.Logger
}

// NewNotifyMemberAddedHandler creates a handler for membership notification jobs.
func NewNotifyMemberAddedHandler(queries *repository.Queries, emails email.Service, logger *slog.Logger) *NotifyMemberAddedHandler {
	return &NotifyMemberAddedHandler{
		queries: queries,
		emails:  emails,
		logger:  logger,
	}
}

// Type returns the job type identifier.
func (h *NotifyMemberAddedHandler) Type() string {
	return worker.JobTypeNotifyMemberAdded
}

// Handle loads the user, workspace, and inviter, then sends the email.
// Missing rows are permanent failures; the user or workspace may have
// been deleted between enqueue and execution.
func (h *NotifyMemberAddedHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.NotifyMemberAddedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	user, err := h.queries.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worker.NewPermanentError(fmt.Errorf("user not found: %w", err))
		}
		return fmt.Errorf("fetch user: %w", err)
	}

	workspace, err := h.queries.GetWorkspaceByID(ctx, p.WorkspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worker.NewPermanentError(fmt.Errorf("workspace not found: %w", err))
		}
		return fmt.Errorf("fetch workspace: %w", err)
	}

	addedByName := "A workspace owner"
	if addedBy, err := h.queries.GetUserByID(ctx, p.AddedByID); err == nil {
		addedByName = addedBy.Name
	}

	if err := h.emails.SendWorkspaceAddedEmail(ctx, user.Email, user.Name, workspace.Name, addedByName); err != nil {
		// SMTP hiccups are retryable
		return fmt.Errorf("send workspace added email: %w", err)
	}

	h.logger.Info("Sent workspace notification",
		"workspace_id", workspace.ID,
		"user_id", user.ID,
	)
	return nil
}
