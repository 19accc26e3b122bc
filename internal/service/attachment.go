package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mwalcott/taskline/internal/domain"
	"github.com/mwalcott/taskline/internal/metrics"
	"github.com/mwalcott/taskline/internal/repository"
	"github.com/mwalcott/taskline/internal/storage"
)

// MaxAttachmentSize is the largest file accepted as a task attachment.
const MaxAttachmentSize = 10 << 20 // 10 MiB

// AttachmentService defines the interface for task attachment operations.
type AttachmentService interface {
	// Upload stores an attachment file and creates a database record.
	// Returns domain.EINVALID for disallowed content types.
	// Returns domain.ETOOLARGE when the file exceeds MaxAttachmentSize.
	Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader, taskID, userID uuid.UUID) (*domain.TaskAttachment, error)

	// List retrieves all attachments on a task the user has access to.
	List(ctx context.Context, taskID, userID uuid.UUID) ([]domain.TaskAttachment, error)

	// Open returns a reader over the attachment bytes plus its metadata.
	// The caller must close the reader.
	Open(ctx context.Context, attachmentID, userID uuid.UUID) (io.ReadCloser, *domain.TaskAttachment, error)

	// URL returns a time-limited URL for downloading the attachment.
	URL(ctx context.Context, attachmentID, userID uuid.UUID, expires time.Duration) (string, error)
}

// attachmentService implements AttachmentService.
type attachmentService struct {
	queries    *repository.Queries
	store      storage.Storage
	workspaces WorkspaceService
	logger     *slog.Logger
}

// NewAttachmentService creates a new AttachmentService.
func NewAttachmentService(queries *repository.Queries, store storage.Storage, workspaces WorkspaceService, logger *slog.Logger) AttachmentService {
	return &attachmentService{
		queries:    queries,
		store:      store,
		workspaces: workspaces,
		logger:     logger,
	}
}

// Upload stores an attachment file and creates a database record.
func (s *attachmentService) Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader, taskID, userID uuid.UUID) (*domain.TaskAttachment, error) {
	const op = "AttachmentService.Upload"

	task, err := s.requireTaskAccess(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	if header.Size > MaxAttachmentSize {
		return nil, domain.Errorf(domain.ETOOLARGE, op, "Attachment exceeds the %d MB limit", MaxAttachmentSize>>20)
	}

	// Sniff the real content type from the first 512 bytes rather than
	// trusting the client-supplied header.
	headerBytes := make([]byte, 512)
	n, err := file.Read(headerBytes)
	if err != nil && err != io.EOF {
		return nil, domain.Internal(err, op, "Failed to read file header")
	}
	contentType := http.DetectContentType(headerBytes[:n])
	if contentType == "application/octet-stream" {
		// Sniffing came up generic; fall back to extension or client header
		contentType = storage.DetectContentType(header.Header.Get("Content-Type"), header.Filename, nil)
	}
	if !storage.IsAllowedAttachmentType(contentType) {
		return nil, domain.Invalid(op, "Attachment type is not allowed")
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, domain.Internal(err, op, "Failed to rewind file")
	}

	key := storage.AttachmentKey(task.ID, header.Filename)
	err = s.store.Put(ctx, key, file, storage.PutOptions{
		ContentType: contentType,
		MaxSize:     MaxAttachmentSize,
	})
	if err != nil {
		metrics.AttachmentsUploaded.WithLabelValues("error").Inc()
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, domain.Errorf(domain.ETOOLARGE, op, "Attachment exceeds the %d MB limit", MaxAttachmentSize>>20)
		}
		s.logger.Error("failed to store attachment", "error", err, "op", op, "task_id", taskID)
		return nil, domain.Internal(err, op, "Failed to store attachment")
	}

	repoAttachment, err := s.queries.CreateTaskAttachment(ctx, repository.CreateTaskAttachmentParams{
		TaskID:      task.ID,
		UploadedBy:  userID,
		StorageKey:  key,
		FileName:    header.Filename,
		ContentType: contentType,
		SizeBytes:   header.Size,
	})
	if err != nil {
		// Roll back the stored object so the bucket doesn't accumulate
		// rows-less files
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to clean up orphaned object", "error", delErr, "key", key)
		}
		metrics.AttachmentsUploaded.WithLabelValues("error").Inc()
		return nil, domain.Internal(err, op, "Failed to record attachment")
	}

	attachment := repoAttachmentToDomain(repoAttachment)
	s.logger.Info("attachment uploaded", "attachment_id", attachment.ID, "task_id", taskID, "size", attachment.SizeBytes)
	metrics.AttachmentsUploaded.WithLabelValues("success").Inc()

	return &attachment, nil
}

// List retrieves all attachments on a task the user has access to.
func (s *attachmentService) List(ctx context.Context, taskID, userID uuid.UUID) ([]domain.TaskAttachment, error) {
	const op = "AttachmentService.List"

	if _, err := s.requireTaskAccess(ctx, taskID, userID); err != nil {
		return nil, err
	}

	repoAttachments, err := s.queries.ListTaskAttachments(ctx, taskID)
	if err != nil {
		s.logger.Error("failed to list attachments", "error", err, "op", op, "task_id", taskID)
		return nil, domain.Internal(err, op, "Failed to list attachments")
	}

	attachments := make([]domain.TaskAttachment, len(repoAttachments))
	for i, ra := range repoAttachments {
		attachments[i] = repoAttachmentToDomain(ra)
	}

	return attachments, nil
}

// Open returns a reader over the attachment bytes plus its metadata.
func (s *attachmentService) Open(ctx context.Context, attachmentID, userID uuid.UUID) (io.ReadCloser, *domain.TaskAttachment, error) {
	const op = "AttachmentService.Open"

	attachment, err := s.getWithAccess(ctx, attachmentID, userID)
	if err != nil {
		return nil, nil, err
	}

	body, _, err := s.store.Get(ctx, attachment.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, domain.NotFound(op, "attachment", attachmentID.String())
		}
		s.logger.Error("failed to fetch attachment", "error", err, "op", op, "attachment_id", attachmentID)
		return nil, nil, domain.Internal(err, op, "Failed to fetch attachment")
	}

	return body, attachment, nil
}

// URL returns a time-limited URL for downloading the attachment.
func (s *attachmentService) URL(ctx context.Context, attachmentID, userID uuid.UUID, expires time.Duration) (string, error) {
	const op = "AttachmentService.URL"

	attachment, err := s.getWithAccess(ctx, attachmentID, userID)
	if err != nil {
		return "", err
	}

	url, err := s.store.URL(ctx, attachment.StorageKey, expires)
	if err != nil {
		s.logger.Error("failed to generate attachment URL", "error", err, "op", op, "attachment_id", attachmentID)
		return "", domain.Internal(err, op, "Failed to generate attachment URL")
	}

	return url, nil
}

// getWithAccess loads an attachment row and checks the requester can see it.
func (s *attachmentService) getWithAccess(ctx context.Context, attachmentID, userID uuid.UUID) (*domain.TaskAttachment, error) {
	const op = "AttachmentService.getWithAccess"

	repoAttachment, err := s.queries.GetTaskAttachment(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "attachment", attachmentID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve attachment")
	}

	if _, err := s.requireTaskAccess(ctx, repoAttachment.TaskID, userID); err != nil {
		return nil, err
	}

	attachment := repoAttachmentToDomain(repoAttachment)
	return &attachment, nil
}

// requireTaskAccess resolves task -> project -> workspace and checks membership.
func (s *attachmentService) requireTaskAccess(ctx context.Context, taskID, userID uuid.UUID) (*repository.Task, error) {
	const op = "AttachmentService.requireTaskAccess"

	repoTask, err := s.queries.GetTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "task", taskID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve task")
	}

	repoProject, err := s.queries.GetProjectByID(ctx, repoTask.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "project", repoTask.ProjectID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve project")
	}

	if _, err := s.workspaces.RequireMember(ctx, repoProject.WorkspaceID, userID); err != nil {
		return nil, err
	}

	return &repoTask, nil
}

func repoAttachmentToDomain(a repository.TaskAttachment) domain.TaskAttachment {
	return domain.TaskAttachment{
		ID:          a.ID,
		TaskID:      a.TaskID,
		UploadedBy:  a.UploadedBy,
		StorageKey:  a.StorageKey,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt,
	}
}
