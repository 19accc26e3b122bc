package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const createWorkspace = `
INSERT INTO workspaces (name, description, owner_id)
VALUES ($1, $2, $3)
RETURNING id, name, description, owner_id, created_at, updated_at
`

type CreateWorkspaceParams struct {
	Name        string
	Description sql.NullString
	OwnerID     uuid.UUID
}

func (q *Queries) CreateWorkspace(ctx context.Context, arg CreateWorkspaceParams) (Workspace, error) {
	row := q.db.QueryRowContext(ctx, createWorkspace, arg.Name, arg.Description, arg.OwnerID)
	var w Workspace
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

const getWorkspaceByID = `
SELECT id, name, description, owner_id, created_at, updated_at
FROM workspaces
WHERE id = $1
`

func (q *Queries) GetWorkspaceByID(ctx context.Context, id uuid.UUID) (Workspace, error) {
	row := q.db.QueryRowContext(ctx, getWorkspaceByID, id)
	var w Workspace
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

const listWorkspacesForUser = `
SELECT w.id, w.name, w.description, w.owner_id, w.created_at, w.updated_at
FROM workspaces w
JOIN workspace_members m ON m.workspace_id = w.id
WHERE m.user_id = $1
ORDER BY w.created_at
`

func (q *Queries) ListWorkspacesForUser(ctx context.Context, userID uuid.UUID) ([]Workspace, error) {
	rows, err := q.db.QueryContext(ctx, listWorkspacesForUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Workspace
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

const addWorkspaceMember = `
INSERT INTO workspace_members (workspace_id, user_id, role)
VALUES ($1, $2, $3)
RETURNING workspace_id, user_id, role, joined_at
`

type AddWorkspaceMemberParams struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	Role        string
}

func (q *Queries) AddWorkspaceMember(ctx context.Context, arg AddWorkspaceMemberParams) (WorkspaceMember, error) {
	row := q.db.QueryRowContext(ctx, addWorkspaceMember, arg.WorkspaceID, arg.UserID, arg.Role)
	var m WorkspaceMember
	err := row.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt)
	return m, err
}

const getWorkspaceMember = `
SELECT workspace_id, user_id, role, joined_at
FROM workspace_members
WHERE workspace_id = $1 AND user_id = $2
`

func (q *Queries) GetWorkspaceMember(ctx context.Context, workspaceID, userID uuid.UUID) (WorkspaceMember, error) {
	row := q.db.QueryRowContext(ctx, getWorkspaceMember, workspaceID, userID)
	var m WorkspaceMember
	err := row.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt)
	return m, err
}

const listWorkspaceMembers = `
SELECT workspace_id, user_id, role, joined_at
FROM workspace_members
WHERE workspace_id = $1
ORDER BY joined_at
`

func (q *Queries) ListWorkspaceMembers(ctx context.Context, workspaceID uuid.UUID) ([]WorkspaceMember, error) {
	rows, err := q.db.QueryContext(ctx, listWorkspaceMembers, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WorkspaceMember
	for rows.Next() {
		var m WorkspaceMember
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
