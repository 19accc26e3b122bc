package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const createTask = `
INSERT INTO tasks (project_id, title, description, priority, assignee_id, due_date, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, project_id, title, description, status, priority, assignee_id, due_date, created_by, created_at, updated_at
`

type CreateTaskParams struct {
	ProjectID   uuid.UUID
	Title       string
	Description sql.NullString
	Priority    string
	AssigneeID  uuid.NullUUID
	DueDate     sql.NullTime
	CreatedBy   uuid.UUID
}

func (q *Queries) CreateTask(ctx context.Context, arg CreateTaskParams) (Task, error) {
	row := q.db.QueryRowContext(ctx, createTask,
		arg.ProjectID, arg.Title, arg.Description, arg.Priority, arg.AssigneeID, arg.DueDate, arg.CreatedBy)
	return scanTask(row)
}

const getTaskByID = `
SELECT id, project_id, title, description, status, priority, assignee_id, due_date, created_by, created_at, updated_at
FROM tasks
WHERE id = $1
`

func (q *Queries) GetTaskByID(ctx context.Context, id uuid.UUID) (Task, error) {
	return scanTask(q.db.QueryRowContext(ctx, getTaskByID, id))
}

const listTasksByProject = `
SELECT id, project_id, title, description, status, priority, assignee_id, due_date, created_by, created_at, updated_at
FROM tasks
WHERE project_id = $1
ORDER BY created_at
`

func (q *Queries) ListTasksByProject(ctx context.Context, projectID uuid.UUID) ([]Task, error) {
	rows, err := q.db.QueryContext(ctx, listTasksByProject, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
			&t.AssigneeID, &t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const updateTask = `
UPDATE tasks
SET title = $2, description = $3, status = $4, priority = $5, assignee_id = $6, due_date = $7, updated_at = $8
WHERE id = $1
RETURNING id, project_id, title, description, status, priority, assignee_id, due_date, created_by, created_at, updated_at
`

type UpdateTaskParams struct {
	ID          uuid.UUID
	Title       string
	Description sql.NullString
	Status      string
	Priority    string
	AssigneeID  uuid.NullUUID
	DueDate     sql.NullTime
}

func (q *Queries) UpdateTask(ctx context.Context, arg UpdateTaskParams) (Task, error) {
	row := q.db.QueryRowContext(ctx, updateTask,
		arg.ID, arg.Title, arg.Description, arg.Status, arg.Priority, arg.AssigneeID, arg.DueDate, time.Now())
	return scanTask(row)
}

const deleteTask = `
DELETE FROM tasks
WHERE id = $1
`

func (q *Queries) DeleteTask(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteTask, id)
	return err
}

func scanTask(row *sql.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.AssigneeID, &t.DueDate, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const createTaskComment = `
INSERT INTO task_comments (task_id, author_id, body)
VALUES ($1, $2, $3)
RETURNING id, task_id, author_id, body, created_at
`

type CreateTaskCommentParams struct {
	TaskID   uuid.UUID
	AuthorID uuid.UUID
	Body     string
}

func (q *Queries) CreateTaskComment(ctx context.Context, arg CreateTaskCommentParams) (TaskComment, error) {
	row := q.db.QueryRowContext(ctx, createTaskComment, arg.TaskID, arg.AuthorID, arg.Body)
	var c TaskComment
	err := row.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt)
	return c, err
}

const listTaskComments = `
SELECT id, task_id, author_id, body, created_at
FROM task_comments
WHERE task_id = $1
ORDER BY created_at
`

func (q *Queries) ListTaskComments(ctx context.Context, taskID uuid.UUID) ([]TaskComment, error) {
	rows, err := q.db.QueryContext(ctx, listTaskComments, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TaskComment
	for rows.Next() {
		var c TaskComment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const createTaskAttachment = `
INSERT INTO task_attachments (task_id, uploaded_by, storage_key, file_name, content_type, size_bytes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, task_id, uploaded_by, storage_key, file_name, content_type, size_bytes, created_at
`

type CreateTaskAttachmentParams struct {
	TaskID      uuid.UUID
	UploadedBy  uuid.UUID
	StorageKey  string
	FileName    string
	ContentType string
	SizeBytes   int64
}

func (q *Queries) CreateTaskAttachment(ctx context.Context, arg CreateTaskAttachmentParams) (TaskAttachment, error) {
	row := q.db.QueryRowContext(ctx, createTaskAttachment,
		arg.TaskID, arg.UploadedBy, arg.StorageKey, arg.FileName, arg.ContentType, arg.SizeBytes)
	var a TaskAttachment
	err := row.Scan(&a.ID, &a.TaskID, &a.UploadedBy, &a.StorageKey, &a.FileName, &a.ContentType, &a.SizeBytes, &a.CreatedAt)
	return a, err
}

const getTaskAttachment = `
SELECT id, task_id, uploaded_by, storage_key, file_name, content_type, size_bytes, created_at
FROM task_attachments
WHERE id = $1
`

func (q *Queries) GetTaskAttachment(ctx context.Context, id uuid.UUID) (TaskAttachment, error) {
	row := q.db.QueryRowContext(ctx, getTaskAttachment, id)
	var a TaskAttachment
	err := row.Scan(&a.ID, &a.TaskID, &a.UploadedBy, &a.StorageKey, &a.FileName, &a.ContentType, &a.SizeBytes, &a.CreatedAt)
	return a, err
}

const listTaskAttachments = `
SELECT id, task_id, uploaded_by, storage_key, file_name, content_type, size_bytes, created_at
FROM task_attachments
WHERE task_id = $1
ORDER BY created_at
`

func (q *Queries) ListTaskAttachments(ctx context.Context, taskID uuid.UUID) ([]TaskAttachment, error) {
	rows, err := q.db.QueryContext(ctx, listTaskAttachments, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TaskAttachment
	for rows.Next() {
		var a TaskAttachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.UploadedBy, &a.StorageKey, &a.FileName, &a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
