package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkspaceRole is the role a user holds inside a workspace.
type WorkspaceRole string

const (
	WorkspaceRoleOwner  WorkspaceRole = "owner"
	WorkspaceRoleMember WorkspaceRole = "member"
)

// Workspace is the top-level tenancy boundary. Every project and task
// belongs to exactly one workspace, and access checks resolve to
// workspace membership.
type Workspace struct {
	ID          uuid.UUID
	Name        string
	Description string
	OwnerID     uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkspaceMember links a user to a workspace.
type WorkspaceMember struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	Role        WorkspaceRole
	JoinedAt    time.Time
}

// IsOwner reports whether the member holds the owner role.
func (m *WorkspaceMember) IsOwner() bool {
	return m.Role == WorkspaceRoleOwner
}

// CreateWorkspaceParams contains the validated parameters for workspace creation.
type CreateWorkspaceParams struct {
	Name        string
	Description string
	OwnerID     uuid.UUID
}

// AddMemberParams contains parameters for adding a user to a workspace.
type AddMemberParams struct {
	WorkspaceID uuid.UUID
	UserEmail   string
	Role        WorkspaceRole
	RequestedBy uuid.UUID
}
