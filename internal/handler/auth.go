// Package handler contains the HTTP handlers.
//
// Handlers parse and validate requests, call into the service layer, and
// shape responses. All API handlers speak JSON; errors flow through the
// helpers in error.go so every response carries the same envelope.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mwalcott/taskline/internal/auth"
	"github.com/mwalcott/taskline/internal/domain"
	"github.com/mwalcott/taskline/internal/metrics"
	"github.com/mwalcott/taskline/internal/service"
	"github.com/mwalcott/taskline/internal/session"
)

// Identity headers set by the edge gatekeeper after token verification.
// The gatekeeper strips inbound copies, so a populated value is trustworthy.
const (
	headerAuthUserID = "X-Auth-User-Id"
	headerAuthEmail  = "X-Auth-Email"
)

// AuthHandler handles registration, login, and session introspection.
type AuthHandler struct {
	userService service.UserService
	extractor   *session.Extractor
	logger      *slog.Logger
	isSecure    bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userService service.UserService, extractor *session.Extractor, logger *slog.Logger, isSecure bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		extractor:   extractor,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// RegisterRoutes attaches the auth endpoints to the mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/verify", h.Verify)
	mux.HandleFunc("GET /api/auth/user", h.User)
}

// userResponse is the public shape of a user. The password hash never
// appears here.
type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	resp := userResponse{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Name,
	}
	if !u.CreatedAt.IsZero() {
		resp.CreatedAt = u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// =============================================================================
// POST /api/auth/register
// =============================================================================

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new user account and logs it in.
//
// Responses:
// - 201 {message, user} with Set-Cookie on success
// - 400 on validation failure
// - 409 if the email is already registered
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("AuthHandler.Register", "Invalid request body"))
		return
	}

	result, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.FullName,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	metrics.RegistrationsTotal.Inc()

	// A fresh account is immediately logged in
	session.SetCookie(w, result.Token, h.isSecure)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Account created",
		"user":    toUserResponse(result.User),
	})
}

// =============================================================================
// POST /api/auth/login
// =============================================================================

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and sets the session cookie.
//
// Responses:
//   - 200 {message, user} with Set-Cookie on success
//   - 401 on bad credentials, with a message that does not reveal whether
//     the email exists
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("AuthHandler.Login", "Invalid request body"))
		return
	}

	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		ErrorResponse(w, r, h.logger, err)
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	session.SetCookie(w, result.Token, h.isSecure)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logged in",
		"user":    toUserResponse(result.User),
	})
}

// =============================================================================
// POST /api/auth/logout
// =============================================================================

// Logout clears the session cookie. Tokens are stateless, so there is
// nothing to revoke server-side; the handler is idempotent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w, h.isSecure)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logged out",
	})
}

// =============================================================================
// GET /api/auth/verify
// =============================================================================

// Verify performs a full verification of the session cookie and returns the
// identity carried in the token. It is a public route: clients use it to
// find out whether they hold a live session, so an invalid or absent cookie
// is a 401, not a redirect.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity := h.extractor.ExtractIdentity(r)
	if identity == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": userResponse{
			ID:    identity.UserID,
			Email: identity.Email,
			Name:  identity.Name,
		},
	})
}

// =============================================================================
// GET /api/auth/user
// =============================================================================

// User returns the current user's profile. The route sits behind the
// gatekeeper, which has already verified the token; this handler trusts the
// propagated identity and only hits the database for the full profile.
func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		// A valid token for a deleted user degrades to unauthenticated
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			UnauthorizedResponse(w, r, h.logger)
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": toUserResponse(user),
	})
}

// requestUserID resolves the authenticated user ID from the request:
// context identity first (same-process gatekeeper), then the propagated
// header (gatekeeper on a separate edge).
func requestUserID(r *http.Request) uuid.UUID {
	if identity := auth.GetIdentityFromRequest(r); identity != nil {
		if id, err := uuid.Parse(identity.UserID); err == nil {
			return id
		}
	}
	if raw := strings.TrimSpace(r.Header.Get(headerAuthUserID)); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return uuid.Nil
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
