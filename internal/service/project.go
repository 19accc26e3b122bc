package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mwalcott/taskline/internal/domain"
	"github.com/mwalcott/taskline/internal/repository"
)

// ProjectService defines the interface for project-related operations.
type ProjectService interface {
	// Create creates a new project in a workspace the user belongs to.
	Create(ctx context.Context, params domain.CreateProjectParams) (*domain.Project, error)

	// GetByID retrieves a project, verifying workspace membership.
	GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Project, error)

	// List retrieves all projects in a workspace the user belongs to.
	List(ctx context.Context, workspaceID, userID uuid.UUID) ([]domain.Project, error)

	// Archive marks a project as archived.
	Archive(ctx context.Context, id, userID uuid.UUID) (*domain.Project, error)
}

// projectService implements ProjectService.
type projectService struct {
	queries    *repository.Queries
	workspaces WorkspaceService
	logger     *slog.Logger
}

// NewProjectService creates a new ProjectService.
func NewProjectService(queries *repository.Queries, workspaces WorkspaceService, logger *slog.Logger) ProjectService {
	return &projectService{
		queries:    queries,
		workspaces: workspaces,
		logger:     logger,
	}
}

// Create creates a new project in a workspace the user belongs to.
func (s *projectService) Create(ctx context.Context, params domain.CreateProjectParams) (*domain.Project, error) {
	const op = "ProjectService.Create"

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return nil, domain.Invalid(op, "Project name is required")
	}

	if _, err := s.workspaces.RequireMember(ctx, params.WorkspaceID, params.CreatedBy); err != nil {
		return nil, err
	}

	repoProject, err := s.queries.CreateProject(ctx, repository.CreateProjectParams{
		WorkspaceID: params.WorkspaceID,
		Name:        params.Name,
		Description: domain.ToNullString(strings.TrimSpace(params.Description)),
		CreatedBy:   params.CreatedBy,
	})
	if err != nil {
		s.logger.Error("failed to create project", "error", err, "op", op, "workspace_id", params.WorkspaceID)
		return nil, domain.Internal(err, op, "Failed to create project")
	}

	project := repoProjectToDomain(repoProject)
	s.logger.Info("project created", "project_id", project.ID, "workspace_id", project.WorkspaceID, "name", project.Name)

	return &project, nil
}

// GetByID retrieves a project, verifying workspace membership.
func (s *projectService) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Project, error) {
	const op = "ProjectService.GetByID"

	repoProject, err := s.queries.GetProjectByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "project", id.String())
		}
		s.logger.Error("failed to get project", "error", err, "op", op, "project_id", id)
		return nil, domain.Internal(err, op, "Failed to retrieve project")
	}

	if _, err := s.workspaces.RequireMember(ctx, repoProject.WorkspaceID, userID); err != nil {
		return nil, err
	}

	project := repoProjectToDomain(repoProject)
	return &project, nil
}

// List retrieves all projects in a workspace the user belongs to.
func (s *projectService) List(ctx context.Context, workspaceID, userID uuid.UUID) ([]domain.Project, error) {
	const op = "ProjectService.List"

	if _, err := s.workspaces.RequireMember(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	repoProjects, err := s.queries.ListProjectsByWorkspace(ctx, workspaceID)
	if err != nil {
		s.logger.Error("failed to list projects", "error", err, "op", op, "workspace_id", workspaceID)
		return nil, domain.Internal(err, op, "Failed to list projects")
	}

	projects := make([]domain.Project, len(repoProjects))
	for i, rp := range repoProjects {
		projects[i] = repoProjectToDomain(rp)
	}

	return projects, nil
}

// Archive marks a project as archived.
func (s *projectService) Archive(ctx context.Context, id, userID uuid.UUID) (*domain.Project, error) {
	const op = "ProjectService.Archive"

	// Reuse GetByID for the existence and membership checks.
	if _, err := s.GetByID(ctx, id, userID); err != nil {
		return nil, err
	}

	repoProject, err := s.queries.UpdateProjectStatus(ctx, id, string(domain.ProjectStatusArchived))
	if err != nil {
		s.logger.Error("failed to archive project", "error", err, "op", op, "project_id", id)
		return nil, domain.Internal(err, op, "Failed to archive project")
	}

	project := repoProjectToDomain(repoProject)
	s.logger.Info("project archived", "project_id", project.ID)

	return &project, nil
}

func repoProjectToDomain(p repository.Project) domain.Project {
	return domain.Project{
		ID:          p.ID,
		WorkspaceID: p.WorkspaceID,
		Name:        p.Name,
		Description: domain.NullStringValue(p.Description),
		Status:      domain.ProjectStatus(p.Status),
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
