package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mwalcott/taskline/internal/storage"
	"github.com/mwalcott/taskline/internal/worker"
)

// PurgeAttachmentsHandler deletes storage objects that belonged to a
// deleted task. The attachment rows cascade away with the task, so the
// payload carries the storage keys captured before deletion.
type PurgeAttachmentsHandler struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewPurgeAttachmentsHandler creates a handler for attachment cleanup jobs.
func NewPurgeAttachmentsHandler(store storage.Storage, logger *slog.Logger) *PurgeAttachmentsHandler {
	return &PurgeAttachmentsHandler{
		store:  store,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *PurgeAttachmentsHandler) Type() string {
	return worker.JobTypePurgeAttachments
}

// Handle deletes each storage object. Already-gone objects count as
// success so retries stay idempotent.
func (h *PurgeAttachmentsHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.PurgeAttachmentsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	var failed []string
	for _, key := range p.StorageKeys {
		if err := h.store.Delete(ctx, key); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			h.logger.Error("Failed to purge attachment object",
				"task_id", p.TaskID,
				"key", key,
				"error", err,
			)
			failed = append(failed, key)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("purge attachments: %d of %d objects failed", len(failed), len(p.StorageKeys))
	}

	h.logger.Info("Purged task attachments",
		"task_id", p.TaskID,
		"count", len(p.StorageKeys),
	)
	return nil
}
