package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/mwalcott/taskline/internal/domain"
	"github.com/mwalcott/taskline/internal/service"
)

// ProjectHandler handles project endpoints.
type ProjectHandler struct {
	projectService service.ProjectService
	logger         *slog.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projectService service.ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// RegisterRoutes attaches the project endpoints to the mux.
func (h *ProjectHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/workspaces/{id}/projects", h.Create)
	mux.HandleFunc("GET /api/workspaces/{id}/projects", h.List)
	mux.HandleFunc("GET /api/projects/{id}", h.Get)
	mux.HandleFunc("POST /api/projects/{id}/archive", h.Archive)
}

type projectResponse struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
}

func toProjectResponse(p domain.Project) projectResponse {
	return projectResponse{
		ID:          p.ID.String(),
		WorkspaceID: p.WorkspaceID.String(),
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Create handles POST /api/workspaces/{id}/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	workspaceID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("ProjectHandler.Create", "Invalid workspace id"))
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("ProjectHandler.Create", "Invalid request body"))
		return
	}

	project, err := h.projectService.Create(r.Context(), domain.CreateProjectParams{
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"project": toProjectResponse(*project),
	})
}

// List handles GET /api/workspaces/{id}/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	workspaceID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("ProjectHandler.List", "Invalid workspace id"))
		return
	}

	projects, err := h.projectService.List(r.Context(), workspaceID, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items := make([]projectResponse, len(projects))
	for i, p := range projects {
		items[i] = toProjectResponse(p)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": items,
	})
}

// Get handles GET /api/projects/{id}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("ProjectHandler.Get", "Invalid project id"))
		return
	}

	project, err := h.projectService.GetByID(r.Context(), id, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project": toProjectResponse(*project),
	})
}

// Archive handles POST /api/projects/{id}/archive.
func (h *ProjectHandler) Archive(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("ProjectHandler.Archive", "Invalid project id"))
		return
	}

	project, err := h.projectService.Archive(r.Context(), id, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project": toProjectResponse(*project),
	})
}
