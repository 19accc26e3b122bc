package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the board column a task sits in.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusInReview   TaskStatus = "in_review"
	TaskStatusDone       TaskStatus = "done"
)

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusInReview, TaskStatusDone:
		return true
	}
	return false
}

// TaskPriority represents the urgency of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// ValidTaskPriority reports whether p is a known task priority.
func ValidTaskPriority(p TaskPriority) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

// Task is a unit of work inside a project.
type Task struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	AssigneeID  *uuid.UUID
	DueDate     *time.Time
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsDone reports whether the task has reached the terminal status.
func (t *Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

// IsOverdue reports whether the task has a due date in the past and is not done.
func (t *Task) IsOverdue() bool {
	if t.DueDate == nil || t.IsDone() {
		return false
	}
	return time.Now().After(*t.DueDate)
}

// TaskComment is a discussion entry on a task.
type TaskComment struct {
	ID        uuid.UUID
	TaskID    uuid.UUID
	AuthorID  uuid.UUID
	Body      string
	CreatedAt time.Time
}

// TaskAttachment records a file stored against a task. The bytes live in
// object storage under StorageKey; this row is only the index entry.
type TaskAttachment struct {
	ID          uuid.UUID
	TaskID      uuid.UUID
	UploadedBy  uuid.UUID
	StorageKey  string
	FileName    string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}

// CreateTaskParams contains the validated parameters for task creation.
type CreateTaskParams struct {
	ProjectID   uuid.UUID
	Title       string
	Description string
	Priority    TaskPriority
	AssigneeID  *uuid.UUID
	DueDate     *time.Time
	CreatedBy   uuid.UUID
}

// UpdateTaskParams contains parameters for a partial task update.
// Nil pointer fields are left unchanged.
type UpdateTaskParams struct {
	TaskID      uuid.UUID
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	AssigneeID  *uuid.UUID
	DueDate     *time.Time
}
