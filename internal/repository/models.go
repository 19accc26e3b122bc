package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Workspace struct {
	ID          uuid.UUID
	Name        string
	Description sql.NullString
	OwnerID     uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WorkspaceMember struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	Role        string
	JoinedAt    time.Time
}

type Project struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string
	Description sql.NullString
	Status      string
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Task struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	Title       string
	Description sql.NullString
	Status      string
	Priority    string
	AssigneeID  uuid.NullUUID
	DueDate     sql.NullTime
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskComment struct {
	ID        uuid.UUID
	TaskID    uuid.UUID
	AuthorID  uuid.UUID
	Body      string
	CreatedAt time.Time
}

type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      []byte
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ErrorMessage sql.NullString
	ScheduledAt  time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	CreatedAt    time.Time
}

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
