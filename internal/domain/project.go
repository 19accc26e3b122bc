package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus represents the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusArchived ProjectStatus = "archived"
)

// Project groups tasks inside a workspace.
type Project struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string
	Description string
	Status      ProjectStatus
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsArchived reports whether the project has been archived.
func (p *Project) IsArchived() bool {
	return p.Status == ProjectStatusArchived
}

// CreateProjectParams contains the validated parameters for project creation.
type CreateProjectParams struct {
	WorkspaceID uuid.UUID
	Name        string
	Description string
	CreatedBy   uuid.UUID
}
