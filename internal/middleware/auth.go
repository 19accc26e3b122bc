// Package middleware contains HTTP middleware for the Taskline application.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/mwalcott/taskline/internal/auth"
	"github.com/mwalcott/taskline/internal/handler"
	"github.com/mwalcott/taskline/internal/metrics"
	"github.com/mwalcott/taskline/internal/session"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// LoginPath is where unauthenticated page requests are sent.
	LoginPath = "/login"

	// RedirectParam carries the originally requested path through the
	// login redirect so the client can return after authenticating.
	RedirectParam = "redirect"

	// HeaderUserID and HeaderUserEmail carry the verified identity to
	// downstream handlers. They are set ONLY by the gatekeeper; any value
	// arriving from the wire is stripped before classification.
	HeaderUserID    = "X-Auth-User-Id"
	HeaderUserEmail = "X-Auth-Email"
)

// defaultPublicPaths are always reachable. An explicit public entry wins even
// when it is a substring of a protected prefix (/api/auth/verify vs /api).
var defaultPublicPaths = []string{
	"/",
	"/login",
	"/register",
	"/health",
	"/static",
	"/files",
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/logout",
	"/api/auth/verify",
}

// defaultProtectedPaths require a verified identity. Anything matching
// neither set is allowed through (default-open, deliberately).
var defaultProtectedPaths = []string{
	"/dashboard",
	"/workspaces",
	"/projects",
	"/tasks",
	"/settings",
	"/api",
}

// =============================================================================
// Gatekeeper
// =============================================================================

// Gatekeeper is the request-interception layer that runs before any route
// handler. Per request it is a three-state machine:
//
//	{not-yet-classified} -> {ALLOW | REDIRECT}
//
// with REDIRECT always terminal.
//
//  1. Path in the public set -> ALLOW.
//  2. Path not in the protected set -> ALLOW (default-open).
//  3. Protected path, no session cookie -> REDIRECT to login with the
//     original path in the redirect query parameter.
//  4. Protected path, cookie fails verification -> REDIRECT to login and
//     clear the cookie (proactively drop invalid client state).
//  5. Protected path, cookie verifies -> ALLOW; the verified user id and
//     email are propagated as request headers and the identity is bound to
//     the request context.
//
// API paths receive structured 401 JSON instead of redirects.
type Gatekeeper struct {
	extractor      *session.Extractor
	logger         *slog.Logger
	isSecure       bool
	publicPaths    []string
	protectedPaths []string
}

// NewGatekeeper creates a Gatekeeper with the default route classification.
func NewGatekeeper(extractor *session.Extractor, logger *slog.Logger, isSecure bool) *Gatekeeper {
	return &Gatekeeper{
		extractor:      extractor,
		logger:         logger,
		isSecure:       isSecure,
		publicPaths:    defaultPublicPaths,
		protectedPaths: defaultProtectedPaths,
	}
}

// NewGatekeeperWithPaths creates a Gatekeeper with an explicit classification.
// Used by tests and by deployments that gate additional prefixes.
func NewGatekeeperWithPaths(extractor *session.Extractor, logger *slog.Logger, isSecure bool, public, protected []string) *Gatekeeper {
	return &Gatekeeper{
		extractor:      extractor,
		logger:         logger,
		isSecure:       isSecure,
		publicPaths:    public,
		protectedPaths: protected,
	}
}

// Handler returns the gatekeeper middleware.
func (g *Gatekeeper) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Identity headers must only ever originate here. Strip whatever
		// the client sent before anything else looks at the request.
		r.Header.Del(HeaderUserID)
		r.Header.Del(HeaderUserEmail)

		path := r.URL.Path

		// Public match is checked before protected match.
		if matchesAny(path, g.publicPaths) {
			next.ServeHTTP(w, r)
			return
		}
		if !matchesAny(path, g.protectedPaths) {
			next.ServeHTTP(w, r)
			return
		}

		raw := session.TokenFromCookieHeader(r.Header.Get("Cookie"))
		if raw == "" {
			g.deny(w, r, false)
			return
		}

		identity := g.extractor.VerifyValue(raw)
		if identity == nil {
			metrics.TokenVerifications.WithLabelValues("failure").Inc()
			g.logger.Debug("gatekeeper rejected session token", "path", path)
			g.deny(w, r, true)
			return
		}
		metrics.TokenVerifications.WithLabelValues("success").Inc()

		// Downstream handlers trust these without re-verifying.
		r.Header.Set(HeaderUserID, identity.UserID)
		r.Header.Set(HeaderUserEmail, identity.Email)

		next.ServeHTTP(w, r.WithContext(auth.SetIdentity(r.Context(), identity)))
	})
}

// deny terminates a protected request without identity. clearCookie is set
// when a cookie was present but failed verification.
func (g *Gatekeeper) deny(w http.ResponseWriter, r *http.Request, clearCookie bool) {
	if clearCookie {
		session.ClearCookie(w, g.isSecure)
	}

	// API callers get structured JSON, never redirects.
	if strings.HasPrefix(r.URL.Path, "/api/") {
		handler.UnauthorizedResponse(w, r, g.logger)
		return
	}

	target := LoginPath
	if !clearCookie {
		// Preserve the original destination so the client can return
		// after authenticating.
		target += "?" + RedirectParam + "=" + r.URL.Path
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// matchesAny reports whether path matches an entry exactly or falls under it
// as a prefix with a trailing slash.
func matchesAny(path string, entries []string) bool {
	for _, entry := range entries {
		if path == entry || strings.HasPrefix(path, entry+"/") {
			return true
		}
	}
	return false
}

// =============================================================================
// RequireIdentity Middleware
// =============================================================================

// RequireIdentity ensures a verified identity is bound to the request
// context before the handler runs. It is the fine-grained companion to the
// gatekeeper: routes mounted behind it can assume auth.GetIdentity never
// returns nil.
//
// If the gatekeeper did not already bind an identity (e.g. a route gated
// here but classified default-open), the session cookie is verified directly.
type RequireIdentity struct {
	extractor *session.Extractor
	logger    *slog.Logger
}

// NewRequireIdentity creates the middleware.
func NewRequireIdentity(extractor *session.Extractor, logger *slog.Logger) *RequireIdentity {
	return &RequireIdentity{
		extractor: extractor,
		logger:    logger,
	}
}

// Handler returns middleware that rejects anonymous requests with 401 JSON.
func (m *RequireIdentity) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := auth.GetIdentity(r.Context())
		if identity == nil {
			identity = m.extractor.ExtractIdentity(r)
		}
		if identity == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.SetIdentity(r.Context(), identity)))
	})
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw, gatekeeper.Handler)
//	mux.Handle("GET /dashboard", stack(dashboardHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
