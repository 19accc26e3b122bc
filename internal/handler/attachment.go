package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mwalcott/taskline/internal/domain"
	"github.com/mwalcott/taskline/internal/service"
)

// AttachmentHandler handles task attachment upload and download endpoints.
type AttachmentHandler struct {
	attachmentService service.AttachmentService
	logger            *slog.Logger
}

// NewAttachmentHandler creates a new AttachmentHandler.
func NewAttachmentHandler(attachmentService service.AttachmentService, logger *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentService: attachmentService,
		logger:            logger,
	}
}

// RegisterRoutes attaches the attachment endpoints to the mux.
func (h *AttachmentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/tasks/{id}/attachments", h.Upload)
	mux.HandleFunc("GET /api/tasks/{id}/attachments", h.List)
	mux.HandleFunc("GET /api/attachments/{id}", h.Download)
	mux.HandleFunc("GET /api/attachments/{id}/url", h.URL)
}

type attachmentResponse struct {
	ID          string `json:"id"`
	TaskID      string `json:"taskId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
	CreatedAt   string `json:"createdAt"`
}

func toAttachmentResponse(a domain.TaskAttachment) attachmentResponse {
	return attachmentResponse{
		ID:          a.ID.String(),
		TaskID:      a.TaskID.String(),
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Upload handles POST /api/tasks/{id}/attachments (multipart form, "file" field).
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("AttachmentHandler.Upload", "Invalid task id"))
		return
	}

	// Cap the whole request body; the service enforces the per-file limit
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxAttachmentSize+1<<20)
	if err := r.ParseMultipartForm(service.MaxAttachmentSize); err != nil {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, "AttachmentHandler.Upload", "Upload too large"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("AttachmentHandler.Upload", "Missing file field"))
		return
	}
	defer file.Close()

	attachment, err := h.attachmentService.Upload(r.Context(), file, header, taskID, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"attachment": toAttachmentResponse(*attachment),
	})
}

// List handles GET /api/tasks/{id}/attachments.
func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("AttachmentHandler.List", "Invalid task id"))
		return
	}

	attachments, err := h.attachmentService.List(r.Context(), taskID, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items := make([]attachmentResponse, len(attachments))
	for i, a := range attachments {
		items[i] = toAttachmentResponse(a)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attachments": items,
	})
}

// Download handles GET /api/attachments/{id}, streaming the file bytes.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("AttachmentHandler.Download", "Invalid attachment id"))
		return
	}

	body, attachment, err := h.attachmentService.Open(r.Context(), id, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(attachment.SizeBytes, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+attachment.FileName+`"`)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("attachment stream interrupted", "error", err, "attachment_id", id)
	}
}

// URL handles GET /api/attachments/{id}/url, returning a presigned link.
func (h *AttachmentHandler) URL(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("AttachmentHandler.URL", "Invalid attachment id"))
		return
	}

	url, err := h.attachmentService.URL(r.Context(), id, userID, 15*time.Minute)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url": url,
	})
}
