package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwalcott/taskline/internal/repository"
)

// Job type constants. Each must match a registered JobHandler.Type().
const (
	JobTypeNotifyMemberAdded = "notify_member_added"
	JobTypePurgeAttachments  = "purge_attachments"
)

// Priority constants for job scheduling.
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// NotifyMemberAddedPayload is the payload for membership notification jobs.
type NotifyMemberAddedPayload struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
	UserID      uuid.UUID `json:"user_id"`
	AddedByID   uuid.UUID `json:"added_by_id"`
}

// PurgeAttachmentsPayload is the payload for attachment cleanup jobs.
// StorageKeys are captured before the task row is deleted since the
// attachment rows cascade away with it.
type PurgeAttachmentsPayload struct {
	TaskID      uuid.UUID `json:"task_id"`
	StorageKeys []string  `json:"storage_keys"`
}

// EnqueueOption customizes job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// Enqueue inserts a job row for later pickup by a Worker.
func Enqueue(
	ctx context.Context,
	queries *repository.Queries,
	jobType string,
	payload any,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	job, err := queries.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueueNotifyMemberAdded schedules an email to a user who was just
// added to a workspace.
func EnqueueNotifyMemberAdded(
	ctx context.Context,
	queries *repository.Queries,
	workspaceID, userID, addedByID uuid.UUID,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := NotifyMemberAddedPayload{
		WorkspaceID: workspaceID,
		UserID:      userID,
		AddedByID:   addedByID,
	}

	return Enqueue(ctx, queries, JobTypeNotifyMemberAdded, payload, opts...)
}

// EnqueuePurgeAttachments schedules deletion of storage objects left
// behind by a deleted task.
func EnqueuePurgeAttachments(
	ctx context.Context,
	queries *repository.Queries,
	taskID uuid.UUID,
	storageKeys []string,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := PurgeAttachmentsPayload{
		TaskID:      taskID,
		StorageKeys: storageKeys,
	}

	return Enqueue(ctx, queries, JobTypePurgeAttachments, payload, opts...)
}
