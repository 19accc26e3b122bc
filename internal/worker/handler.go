package worker

import (
	"context"
	"errors"
)

// JobHandler executes one kind of background job.
type JobHandler interface {
	// Type returns the job type identifier this handler processes.
	// It must match the job_type column in the jobs table.
	Type() string

	// Handle executes the job. The payload is raw JSON from the
	// database. Return a PermanentError to skip retries.
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError marks a failure that no retry can fix. Jobs failing
// with one are marked 'failed' immediately instead of rescheduled.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps err as a PermanentError.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err (or anything it wraps) is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
