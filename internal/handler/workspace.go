package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/mwalcott/taskline/internal/domain"
	"github.com/mwalcott/taskline/internal/service"
)

// WorkspaceHandler handles workspace CRUD and membership endpoints.
type WorkspaceHandler struct {
	workspaceService service.WorkspaceService
	logger           *slog.Logger
}

// NewWorkspaceHandler creates a new WorkspaceHandler.
func NewWorkspaceHandler(workspaceService service.WorkspaceService, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaceService: workspaceService,
		logger:           logger,
	}
}

// RegisterRoutes attaches the workspace endpoints to the mux.
func (h *WorkspaceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/workspaces", h.Create)
	mux.HandleFunc("GET /api/workspaces", h.List)
	mux.HandleFunc("GET /api/workspaces/{id}", h.Get)
	mux.HandleFunc("POST /api/workspaces/{id}/members", h.AddMember)
	mux.HandleFunc("GET /api/workspaces/{id}/members", h.ListMembers)
}

type workspaceResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"ownerId"`
	CreatedAt   string `json:"createdAt"`
}

func toWorkspaceResponse(w domain.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:          w.ID.String(),
		Name:        w.Name,
		Description: w.Description,
		OwnerID:     w.OwnerID.String(),
		CreatedAt:   w.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

type memberResponse struct {
	WorkspaceID string `json:"workspaceId"`
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	JoinedAt    string `json:"joinedAt"`
}

func toMemberResponse(m domain.WorkspaceMember) memberResponse {
	return memberResponse{
		WorkspaceID: m.WorkspaceID.String(),
		UserID:      m.UserID.String(),
		Role:        string(m.Role),
		JoinedAt:    m.JoinedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Create handles POST /api/workspaces.
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("WorkspaceHandler.Create", "Invalid request body"))
		return
	}

	workspace, err := h.workspaceService.Create(r.Context(), domain.CreateWorkspaceParams{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"workspace": toWorkspaceResponse(*workspace),
	})
}

// List handles GET /api/workspaces.
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	workspaces, err := h.workspaceService.List(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items := make([]workspaceResponse, len(workspaces))
	for i, ws := range workspaces {
		items[i] = toWorkspaceResponse(ws)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workspaces": items,
	})
}

// Get handles GET /api/workspaces/{id}.
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("WorkspaceHandler.Get", "Invalid workspace id"))
		return
	}

	workspace, err := h.workspaceService.GetByID(r.Context(), id, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workspace": toWorkspaceResponse(*workspace),
	})
}

// AddMember handles POST /api/workspaces/{id}/members.
func (h *WorkspaceHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("WorkspaceHandler.AddMember", "Invalid workspace id"))
		return
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("WorkspaceHandler.AddMember", "Invalid request body"))
		return
	}

	member, err := h.workspaceService.AddMember(r.Context(), domain.AddMemberParams{
		WorkspaceID: id,
		UserEmail:   req.Email,
		Role:        domain.WorkspaceRole(req.Role),
		RequestedBy: userID,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"member": toMemberResponse(*member),
	})
}

// ListMembers handles GET /api/workspaces/{id}/members.
func (h *WorkspaceHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("WorkspaceHandler.ListMembers", "Invalid workspace id"))
		return
	}

	members, err := h.workspaceService.ListMembers(r.Context(), id, userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items := make([]memberResponse, len(members))
	for i, m := range members {
		items[i] = toMemberResponse(m)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"members": items,
	})
}
