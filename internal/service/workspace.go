package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mwalcott/taskline/internal/domain"
	"github.com/mwalcott/taskline/internal/metrics"
	"github.com/mwalcott/taskline/internal/repository"
	"github.com/mwalcott/taskline/internal/worker"
)

// WorkspaceService defines the interface for workspace-related operations.
//
// Workspaces are the tenancy boundary: every access check in the project and
// task services resolves to a membership row looked up here.
type WorkspaceService interface {
	// Create creates a new workspace with the creator as owner member.
	Create(ctx context.Context, params domain.CreateWorkspaceParams) (*domain.Workspace, error)

	// GetByID retrieves a workspace, verifying the requester is a member.
	GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Workspace, error)

	// List retrieves all workspaces the user is a member of.
	List(ctx context.Context, userID uuid.UUID) ([]domain.Workspace, error)

	// AddMember adds a user to a workspace by email.
	// Only the workspace owner may add members.
	AddMember(ctx context.Context, params domain.AddMemberParams) (*domain.WorkspaceMember, error)

	// ListMembers lists the members of a workspace the requester belongs to.
	ListMembers(ctx context.Context, workspaceID, userID uuid.UUID) ([]domain.WorkspaceMember, error)

	// RequireMember returns the membership row for userID in workspaceID.
	// Returns domain.EFORBIDDEN if the user is not a member.
	RequireMember(ctx context.Context, workspaceID, userID uuid.UUID) (*domain.WorkspaceMember, error)
}

// workspaceService implements WorkspaceService.
type workspaceService struct {
	queries *repository.Queries
	logger  *slog.Logger

	// notify controls whether AddMember enqueues a notification email
	// job. Off when no SMTP server is configured.
	notify bool
}

// NewWorkspaceService creates a new WorkspaceService.
func NewWorkspaceService(queries *repository.Queries, notify bool, logger *slog.Logger) WorkspaceService {
	return &workspaceService{
		queries: queries,
		logger:  logger,
		notify:  notify,
	}
}

// Create creates a new workspace with the creator as owner member.
func (s *workspaceService) Create(ctx context.Context, params domain.CreateWorkspaceParams) (*domain.Workspace, error) {
	const op = "WorkspaceService.Create"

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return nil, domain.Invalid(op, "Workspace name is required")
	}

	repoWorkspace, err := s.queries.CreateWorkspace(ctx, repository.CreateWorkspaceParams{
		Name:        params.Name,
		Description: domain.ToNullString(strings.TrimSpace(params.Description)),
		OwnerID:     params.OwnerID,
	})
	if err != nil {
		s.logger.Error("failed to create workspace", "error", err, "op", op)
		return nil, domain.Internal(err, op, "Failed to create workspace")
	}

	// The creator is always the first member, with the owner role.
	_, err = s.queries.AddWorkspaceMember(ctx, repository.AddWorkspaceMemberParams{
		WorkspaceID: repoWorkspace.ID,
		UserID:      params.OwnerID,
		Role:        string(domain.WorkspaceRoleOwner),
	})
	if err != nil {
		s.logger.Error("failed to add owner membership", "error", err, "op", op, "workspace_id", repoWorkspace.ID)
		return nil, domain.Internal(err, op, "Failed to create workspace")
	}

	workspace := repoWorkspaceToDomain(repoWorkspace)
	s.logger.Info("workspace created", "workspace_id", workspace.ID, "owner_id", workspace.OwnerID, "name", workspace.Name)
	metrics.WorkspacesCreated.Inc()

	return &workspace, nil
}

// GetByID retrieves a workspace, verifying the requester is a member.
func (s *workspaceService) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Workspace, error) {
	const op = "WorkspaceService.GetByID"

	if _, err := s.RequireMember(ctx, id, userID); err != nil {
		return nil, err
	}

	repoWorkspace, err := s.queries.GetWorkspaceByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "workspace", id.String())
		}
		s.logger.Error("failed to get workspace", "error", err, "op", op, "workspace_id", id)
		return nil, domain.Internal(err, op, "Failed to retrieve workspace")
	}

	workspace := repoWorkspaceToDomain(repoWorkspace)
	return &workspace, nil
}

// List retrieves all workspaces the user is a member of.
func (s *workspaceService) List(ctx context.Context, userID uuid.UUID) ([]domain.Workspace, error) {
	const op = "WorkspaceService.List"

	repoWorkspaces, err := s.queries.ListWorkspacesForUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list workspaces", "error", err, "op", op, "user_id", userID)
		return nil, domain.Internal(err, op, "Failed to list workspaces")
	}

	workspaces := make([]domain.Workspace, len(repoWorkspaces))
	for i, rw := range repoWorkspaces {
		workspaces[i] = repoWorkspaceToDomain(rw)
	}

	return workspaces, nil
}

// AddMember adds a user to a workspace by email.
func (s *workspaceService) AddMember(ctx context.Context, params domain.AddMemberParams) (*domain.WorkspaceMember, error) {
	const op = "WorkspaceService.AddMember"

	requester, err := s.RequireMember(ctx, params.WorkspaceID, params.RequestedBy)
	if err != nil {
		return nil, err
	}
	if !requester.IsOwner() {
		return nil, domain.Forbidden(op, "Only the workspace owner can add members")
	}

	if params.Role == "" {
		params.Role = domain.WorkspaceRoleMember
	}
	if params.Role != domain.WorkspaceRoleOwner && params.Role != domain.WorkspaceRoleMember {
		return nil, domain.Invalid(op, "Invalid member role")
	}

	email := strings.ToLower(strings.TrimSpace(params.UserEmail))
	repoUser, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", email)
		}
		return nil, domain.Internal(err, op, "Failed to look up user")
	}

	repoMember, err := s.queries.AddWorkspaceMember(ctx, repository.AddWorkspaceMemberParams{
		WorkspaceID: params.WorkspaceID,
		UserID:      repoUser.ID,
		Role:        string(params.Role),
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, domain.Conflict(op, "User is already a member")
		}
		s.logger.Error("failed to add member", "error", err, "op", op, "workspace_id", params.WorkspaceID)
		return nil, domain.Internal(err, op, "Failed to add member")
	}

	member := repoMemberToDomain(repoMember)
	s.logger.Info("workspace member added", "workspace_id", member.WorkspaceID, "user_id", member.UserID, "role", member.Role)

	if s.notify {
		// Membership already committed; a failed enqueue only costs the email.
		_, err := worker.EnqueueNotifyMemberAdded(ctx, s.queries, params.WorkspaceID, repoUser.ID, params.RequestedBy)
		if err != nil {
			s.logger.Error("failed to enqueue member notification", "error", err, "op", op, "workspace_id", params.WorkspaceID)
		}
	}

	return &member, nil
}

// ListMembers lists the members of a workspace the requester belongs to.
func (s *workspaceService) ListMembers(ctx context.Context, workspaceID, userID uuid.UUID) ([]domain.WorkspaceMember, error) {
	const op = "WorkspaceService.ListMembers"

	if _, err := s.RequireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	repoMembers, err := s.queries.ListWorkspaceMembers(ctx, workspaceID)
	if err != nil {
		s.logger.Error("failed to list members", "error", err, "op", op, "workspace_id", workspaceID)
		return nil, domain.Internal(err, op, "Failed to list members")
	}

	members := make([]domain.WorkspaceMember, len(repoMembers))
	for i, rm := range repoMembers {
		members[i] = repoMemberToDomain(rm)
	}

	return members, nil
}

// RequireMember returns the membership row for userID in workspaceID.
func (s *workspaceService) RequireMember(ctx context.Context, workspaceID, userID uuid.UUID) (*domain.WorkspaceMember, error) {
	const op = "WorkspaceService.RequireMember"

	repoMember, err := s.queries.GetWorkspaceMember(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Forbidden(op, "Not a member of this workspace")
		}
		return nil, domain.Internal(err, op, "Failed to check membership")
	}

	member := repoMemberToDomain(repoMember)
	return &member, nil
}

func repoWorkspaceToDomain(w repository.Workspace) domain.Workspace {
	return domain.Workspace{
		ID:          w.ID,
		Name:        w.Name,
		Description: domain.NullStringValue(w.Description),
		OwnerID:     w.OwnerID,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

func repoMemberToDomain(m repository.WorkspaceMember) domain.WorkspaceMember {
	return domain.WorkspaceMember{
		WorkspaceID: m.WorkspaceID,
		UserID:      m.UserID,
		Role:        domain.WorkspaceRole(m.Role),
		JoinedAt:    m.JoinedAt,
	}
}
