package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const createProject = `
INSERT INTO projects (workspace_id, name, description, created_by)
VALUES ($1, $2, $3, $4)
RETURNING id, workspace_id, name, description, status, created_by, created_at, updated_at
`

type CreateProjectParams struct {
	WorkspaceID uuid.UUID
	Name        string
	Description sql.NullString
	CreatedBy   uuid.UUID
}

func (q *Queries) CreateProject(ctx context.Context, arg CreateProjectParams) (Project, error) {
	row := q.db.QueryRowContext(ctx, createProject, arg.WorkspaceID, arg.Name, arg.Description, arg.CreatedBy)
	var p Project
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const getProjectByID = `
SELECT id, workspace_id, name, description, status, created_by, created_at, updated_at
FROM projects
WHERE id = $1
`

func (q *Queries) GetProjectByID(ctx context.Context, id uuid.UUID) (Project, error) {
	row := q.db.QueryRowContext(ctx, getProjectByID, id)
	var p Project
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const listProjectsByWorkspace = `
SELECT id, workspace_id, name, description, status, created_by, created_at, updated_at
FROM projects
WHERE workspace_id = $1
ORDER BY created_at
`

func (q *Queries) ListProjectsByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]Project, error) {
	rows, err := q.db.QueryContext(ctx, listProjectsByWorkspace, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const updateProjectStatus = `
UPDATE projects
SET status = $2, updated_at = $3
WHERE id = $1
RETURNING id, workspace_id, name, description, status, created_by, created_at, updated_at
`

func (q *Queries) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status string) (Project, error) {
	row := q.db.QueryRowContext(ctx, updateProjectStatus, id, status, time.Now())
	var p Project
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
