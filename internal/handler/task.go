package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mwalcott/taskline/internal/domain"
	"github.com/mwalcott/taskline/internal/service"
)

// TaskHandler handles task and comment endpoints.
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// RegisterRoutes attaches the task endpoints to the mux.
func (h *TaskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects/{id}/tasks", h.Create)
	mux.HandleFunc("GET /api/projects/{id}/tasks", h.List)
	mux.HandleFunc("GET /api/tasks/{id}", h.Get)
	mux.HandleFunc("PATCH /api/tasks/{id}", h.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/comments", h.AddComment)
	mux.HandleFunc("GET /api/tasks/{id}/comments", h.ListComments)
}

type taskResponse struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"projectId"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	AssigneeID  *string `json:"assigneeId,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
	CreatedBy   string  `json:"createdBy"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

func toTaskResponse(t domain.Task) taskResponse {
	resp := taskResponse{
		ID:          t.ID.String(),
		ProjectID:   t.ProjectID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		CreatedBy:   t.CreatedBy.String(),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if t.AssigneeID != nil {
		s := t.AssigneeID.String()
		resp.AssigneeID = &s
	}
	if t.DueDate != nil {
		s := t.DueDate.UTC().Format(time.RFC3339)
		resp.DueDate = &s
	}
	return resp
}

type commentResponse struct {
	ID        string `json:"id"`
	TaskID    string `json:"taskId"`
	AuthorID  string `json:"authorId"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

func toCommentResponse(c domain.TaskComment) commentResponse {
	return commentResponse{
		ID:        c.ID.String(),
		TaskID:    c.TaskID.String(),
		AuthorID:  c.AuthorID.String(),
		Body:      c.Body,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// parseOptionalUUID parses a non-nil pointer string into a UUID pointer.
func parseOptionalUUID(s *string) (*uuid.UUID, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// parseOptionalTime parses a non-nil pointer RFC 3339 string into a time pointer.
func parseOptionalTime(s *string) (*time.Time, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// Create handles POST /api/projects/{id}/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.Create", "Invalid project id"))
		return
	}

	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Priority    string  `json:"priority"`
		AssigneeID  *string `json:"assigneeId"`
		DueDate     *string `json:"dueDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.Create", "Invalid request body"))
		return
	}

	assigneeID, ok := parseOptionalUUID(req.AssigneeID)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.Create", "Invalid assignee id"))
		return
	}
	dueDate, ok := parseOptionalTime(req.DueDate)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.Create", "Invalid due date"))
		return
	}

	task, err := h.taskService.Create(r.Context(), domain.CreateTaskParams{
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.TaskPriority(req.Priority),
		AssigneeID:  assigneeID,
		DueDate:     dueDate,
		CreatedBy:   userID,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"task": toTaskResponse(*task),
	})
}

// List handles GET /api/projects/{id}/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.List", "Invalid project id"))
		return
	}

	tasks, err := h.taskService.List(r.Context(), projectID, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		items[i] = toTaskResponse(t)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": items,
	})
}

// Get handles GET /api/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.Get", "Invalid task id"))
		return
	}

	task, err := h.taskService.GetByID(r.Context(), id, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task": toTaskResponse(*task),
	})
}

// Update handles PATCH /api/tasks/{id}. Absent fields are left unchanged.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.Update", "Invalid task id"))
		return
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		Priority    *string `json:"priority"`
		AssigneeID  *string `json:"assigneeId"`
		DueDate     *string `json:"dueDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.Update", "Invalid request body"))
		return
	}

	params := domain.UpdateTaskParams{TaskID: id}
	params.Title = req.Title
	params.Description = req.Description
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		params.Status = &status
	}
	if req.Priority != nil {
		priority := domain.TaskPriority(*req.Priority)
		params.Priority = &priority
	}
	if req.AssigneeID != nil {
		assigneeID, ok := parseOptionalUUID(req.AssigneeID)
		if !ok {
			ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.Update", "Invalid assignee id"))
			return
		}
		params.AssigneeID = assigneeID
	}
	if req.DueDate != nil {
		dueDate, ok := parseOptionalTime(req.DueDate)
		if !ok {
			ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.Update", "Invalid due date"))
			return
		}
		params.DueDate = dueDate
	}

	task, err := h.taskService.Update(r.Context(), params, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task": toTaskResponse(*task),
	})
}

// Delete handles DELETE /api/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.Delete", "Invalid task id"))
		return
	}

	if err := h.taskService.Delete(r.Context(), id, userID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddComment handles POST /api/tasks/{id}/comments.
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.AddComment", "Invalid task id"))
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.AddComment", "Invalid request body"))
		return
	}

	comment, err := h.taskService.AddComment(r.Context(), id, userID, req.Body)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"comment": toCommentResponse(*comment),
	})
}

// ListComments handles GET /api/tasks/{id}/comments.
func (h *TaskHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("TaskHandler.ListComments", "Invalid task id"))
		return
	}

	comments, err := h.taskService.ListComments(r.Context(), id, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items := make([]commentResponse, len(comments))
	for i, c := range comments {
		items[i] = toCommentResponse(c)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"comments": items,
	})
}
