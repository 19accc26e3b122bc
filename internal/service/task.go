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

// TaskService defines the interface for task and comment operations.
type TaskService interface {
	// Create creates a new task in a project the user has access to.
	Create(ctx context.Context, params domain.CreateTaskParams) (*domain.Task, error)

	// GetByID retrieves a task, verifying workspace membership.
	GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Task, error)

	// List retrieves all tasks in a project the user has access to.
	List(ctx context.Context, projectID, userID uuid.UUID) ([]domain.Task, error)

	// Update applies a partial update to a task. Nil fields are unchanged.
	Update(ctx context.Context, params domain.UpdateTaskParams, userID uuid.UUID) (*domain.Task, error)

	// Delete removes a task.
	Delete(ctx context.Context, id, userID uuid.UUID) error

	// AddComment appends a comment to a task.
	AddComment(ctx context.Context, taskID, authorID uuid.UUID, body string) (*domain.TaskComment, error)

	// ListComments lists the comments on a task in creation order.
	ListComments(ctx context.Context, taskID, userID uuid.UUID) ([]domain.TaskComment, error)
}

// taskService implements TaskService.
type taskService struct {
	queries    *repository.Queries
	workspaces WorkspaceService
	logger     *slog.Logger
}

// NewTaskService creates a new TaskService.
func NewTaskService(queries *repository.Queries, workspaces WorkspaceService, logger *slog.Logger) TaskService {
	return &taskService{
		queries:    queries,
		workspaces: workspaces,
		logger:     logger,
	}
}

// Create creates a new task in a project the user has access to.
func (s *taskService) Create(ctx context.Context, params domain.CreateTaskParams) (*domain.Task, error) {
	const op = "TaskService.Create"

	params.Title = strings.TrimSpace(params.Title)
	if params.Title == "" {
		return nil, domain.Invalid(op, "Task title is required")
	}
	if params.Priority == "" {
		params.Priority = domain.TaskPriorityMedium
	}
	if !domain.ValidTaskPriority(params.Priority) {
		return nil, domain.Invalid(op, "Invalid task priority")
	}

	if _, err := s.requireProjectAccess(ctx, params.ProjectID, params.CreatedBy); err != nil {
		return nil, err
	}

	repoTask, err := s.queries.CreateTask(ctx, repository.CreateTaskParams{
		ProjectID:   params.ProjectID,
		Title:       params.Title,
		Description: domain.ToNullString(strings.TrimSpace(params.Description)),
		Priority:    string(params.Priority),
		AssigneeID:  domain.ToNullUUID(params.AssigneeID),
		DueDate:     domain.ToNullTime(params.DueDate),
		CreatedBy:   params.CreatedBy,
	})
	if err != nil {
		s.logger.Error("failed to create task", "error", err, "op", op, "project_id", params.ProjectID)
		return nil, domain.Internal(err, op, "Failed to create task")
	}

	task := repoTaskToDomain(repoTask)
	s.logger.Info("task created", "task_id", task.ID, "project_id", task.ProjectID, "title", task.Title)
	metrics.TasksCreated.Inc()

	return &task, nil
}

// GetByID retrieves a task, verifying workspace membership.
func (s *taskService) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Task, error) {
	const op = "TaskService.GetByID"

	repoTask, err := s.queries.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "task", id.String())
		}
		s.logger.Error("failed to get task", "error", err, "op", op, "task_id", id)
		return nil, domain.Internal(err, op, "Failed to retrieve task")
	}

	if _, err := s.requireProjectAccess(ctx, repoTask.ProjectID, userID); err != nil {
		return nil, err
	}

	task := repoTaskToDomain(repoTask)
	return &task, nil
}

// List retrieves all tasks in a project the user has access to.
func (s *taskService) List(ctx context.Context, projectID, userID uuid.UUID) ([]domain.Task, error) {
	const op = "TaskService.List"

	if _, err := s.requireProjectAccess(ctx, projectID, userID); err != nil {
		return nil, err
	}

	repoTasks, err := s.queries.ListTasksByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("failed to list tasks", "error", err, "op", op, "project_id", projectID)
		return nil, domain.Internal(err, op, "Failed to list tasks")
	}

	tasks := make([]domain.Task, len(repoTasks))
	for i, rt := range repoTasks {
		tasks[i] = repoTaskToDomain(rt)
	}

	return tasks, nil
}

// Update applies a partial update to a task. Nil fields are unchanged.
func (s *taskService) Update(ctx context.Context, params domain.UpdateTaskParams, userID uuid.UUID) (*domain.Task, error) {
	const op = "TaskService.Update"

	current, err := s.GetByID(ctx, params.TaskID, userID)
	if err != nil {
		return nil, err
	}

	// Merge requested changes over the current row.
	title := current.Title
	if params.Title != nil {
		title = strings.TrimSpace(*params.Title)
		if title == "" {
			return nil, domain.Invalid(op, "Task title is required")
		}
	}
	description := current.Description
	if params.Description != nil {
		description = strings.TrimSpace(*params.Description)
	}
	status := current.Status
	if params.Status != nil {
		status = *params.Status
		if !domain.ValidTaskStatus(status) {
			return nil, domain.Invalid(op, "Invalid task status")
		}
	}
	priority := current.Priority
	if params.Priority != nil {
		priority = *params.Priority
		if !domain.ValidTaskPriority(priority) {
			return nil, domain.Invalid(op, "Invalid task priority")
		}
	}
	assigneeID := current.AssigneeID
	if params.AssigneeID != nil {
		assigneeID = params.AssigneeID
	}
	dueDate := current.DueDate
	if params.DueDate != nil {
		dueDate = params.DueDate
	}

	repoTask, err := s.queries.UpdateTask(ctx, repository.UpdateTaskParams{
		ID:          params.TaskID,
		Title:       title,
		Description: domain.ToNullString(description),
		Status:      string(status),
		Priority:    string(priority),
		AssigneeID:  domain.ToNullUUID(assigneeID),
		DueDate:     domain.ToNullTime(dueDate),
	})
	if err != nil {
		s.logger.Error("failed to update task", "error", err, "op", op, "task_id", params.TaskID)
		return nil, domain.Internal(err, op, "Failed to update task")
	}

	task := repoTaskToDomain(repoTask)
	s.logger.Info("task updated", "task_id", task.ID, "status", task.Status)

	return &task, nil
}

// Delete removes a task.
func (s *taskService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	const op = "TaskService.Delete"

	if _, err := s.GetByID(ctx, id, userID); err != nil {
		return err
	}

	// Attachment rows cascade with the task, so capture the storage
	// keys now and clean the objects up in the background.
	var storageKeys []string
	attachments, err := s.queries.ListTaskAttachments(ctx, id)
	if err != nil {
		s.logger.Error("failed to list attachments before delete", "error", err, "op", op, "task_id", id)
	} else {
		for _, a := range attachments {
			storageKeys = append(storageKeys, a.StorageKey)
		}
	}

	if err := s.queries.DeleteTask(ctx, id); err != nil {
		s.logger.Error("failed to delete task", "error", err, "op", op, "task_id", id)
		return domain.Internal(err, op, "Failed to delete task")
	}

	if len(storageKeys) > 0 {
		if _, err := worker.EnqueuePurgeAttachments(ctx, s.queries, id, storageKeys); err != nil {
			s.logger.Error("failed to enqueue attachment purge", "error", err, "op", op, "task_id", id)
		}
	}

	s.logger.Info("task deleted", "task_id", id)
	return nil
}

// AddComment appends a comment to a task.
func (s *taskService) AddComment(ctx context.Context, taskID, authorID uuid.UUID, body string) (*domain.TaskComment, error) {
	const op = "TaskService.AddComment"

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.Invalid(op, "Comment body is required")
	}

	if _, err := s.GetByID(ctx, taskID, authorID); err != nil {
		return nil, err
	}

	repoComment, err := s.queries.CreateTaskComment(ctx, repository.CreateTaskCommentParams{
		TaskID:   taskID,
		AuthorID: authorID,
		Body:     body,
	})
	if err != nil {
		s.logger.Error("failed to create comment", "error", err, "op", op, "task_id", taskID)
		return nil, domain.Internal(err, op, "Failed to create comment")
	}

	comment := repoCommentToDomain(repoComment)
	s.logger.Info("task comment added", "task_id", taskID, "comment_id", comment.ID)

	return &comment, nil
}

// ListComments lists the comments on a task in creation order.
func (s *taskService) ListComments(ctx context.Context, taskID, userID uuid.UUID) ([]domain.TaskComment, error) {
	const op = "TaskService.ListComments"

	if _, err := s.GetByID(ctx, taskID, userID); err != nil {
		return nil, err
	}

	repoComments, err := s.queries.ListTaskComments(ctx, taskID)
	if err != nil {
		s.logger.Error("failed to list comments", "error", err, "op", op, "task_id", taskID)
		return nil, domain.Internal(err, op, "Failed to list comments")
	}

	comments := make([]domain.TaskComment, len(repoComments))
	for i, rc := range repoComments {
		comments[i] = repoCommentToDomain(rc)
	}

	return comments, nil
}

// requireProjectAccess resolves the project's workspace and checks membership.
func (s *taskService) requireProjectAccess(ctx context.Context, projectID, userID uuid.UUID) (*repository.Project, error) {
	const op = "TaskService.requireProjectAccess"

	repoProject, err := s.queries.GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "project", projectID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve project")
	}

	if _, err := s.workspaces.RequireMember(ctx, repoProject.WorkspaceID, userID); err != nil {
		return nil, err
	}

	return &repoProject, nil
}

func repoTaskToDomain(t repository.Task) domain.Task {
	var assignee *uuid.UUID
	if t.AssigneeID.Valid {
		id := t.AssigneeID.UUID
		assignee = &id
	}

	return domain.Task{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: domain.NullStringValue(t.Description),
		Status:      domain.TaskStatus(t.Status),
		Priority:    domain.TaskPriority(t.Priority),
		AssigneeID:  assignee,
		DueDate:     domain.NullTimeValue(t.DueDate),
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func repoCommentToDomain(c repository.TaskComment) domain.TaskComment {
	return domain.TaskComment{
		ID:        c.ID,
		TaskID:    c.TaskID,
		AuthorID:  c.AuthorID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}
