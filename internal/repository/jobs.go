package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const jobColumns = `id, job_type, payload, status, priority, attempts, max_attempts, error_message, scheduled_at, started_at, completed_at, created_at`

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID,
		&j.JobType,
		&j.Payload,
		&j.Status,
		&j.Priority,
		&j.Attempts,
		&j.MaxAttempts,
		&j.ErrorMessage,
		&j.ScheduledAt,
		&j.StartedAt,
		&j.CompletedAt,
		&j.CreatedAt,
	)
	return j, err
}

const enqueueJob = `
INSERT INTO jobs (job_type, payload, priority, max_attempts, scheduled_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + jobColumns

type EnqueueJobParams struct {
	JobType     string
	Payload     []byte
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}

func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	row := q.db.QueryRowContext(ctx, enqueueJob,
		arg.JobType, arg.Payload, arg.Priority, arg.MaxAttempts, arg.ScheduledAt)
	return scanJob(row)
}

// SKIP LOCKED lets concurrent workers dequeue without blocking each other.
const dequeueJob = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'pending' AND scheduled_at <= now()
ORDER BY priority DESC, scheduled_at
LIMIT 1
FOR UPDATE SKIP LOCKED
`

func (q *Queries) DequeueJob(ctx context.Context) (Job, error) {
	row := q.db.QueryRowContext(ctx, dequeueJob)
	return scanJob(row)
}

const updateJobStarted = `
UPDATE jobs
SET status = 'running', attempts = attempts + 1, started_at = now()
WHERE id = $1
`

func (q *Queries) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, updateJobStarted, id)
	return err
}

const updateJobCompleted = `
UPDATE jobs
SET status = 'completed', completed_at = now(), error_message = NULL
WHERE id = $1
`

func (q *Queries) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, updateJobCompleted, id)
	return err
}

// Failed jobs with attempts remaining go back to pending with exponential
// backoff (1m, 4m, 9m, ...). Exhausted jobs stay failed.
const updateJobFailed = `
UPDATE jobs
SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
    error_message = $2,
    scheduled_at = now() + (attempts * attempts) * interval '1 minute',
    completed_at = CASE WHEN attempts >= max_attempts THEN now() ELSE NULL END
WHERE id = $1
`

type UpdateJobFailedParams struct {
	ID           uuid.UUID
	ErrorMessage string
}

func (q *Queries) UpdateJobFailed(ctx context.Context, arg UpdateJobFailedParams) error {
	_, err := q.db.ExecContext(ctx, updateJobFailed, arg.ID, arg.ErrorMessage)
	return err
}

const markJobFailedPermanent = `
UPDATE jobs
SET status = 'failed', error_message = $2, completed_at = now()
WHERE id = $1
`

func (q *Queries) MarkJobFailedPermanent(ctx context.Context, id uuid.UUID, errorMessage string) error {
	_, err := q.db.ExecContext(ctx, markJobFailedPermanent, id, errorMessage)
	return err
}

// Jobs stuck in 'running' longer than the threshold belong to a crashed
// worker and are returned to the queue.
const recoverStaleJobs = `
UPDATE jobs
SET status = 'pending', started_at = NULL
WHERE status = 'running' AND started_at < now() - make_interval(secs => $1)
`

func (q *Queries) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	res, err := q.db.ExecContext(ctx, recoverStaleJobs, thresholdSeconds)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
