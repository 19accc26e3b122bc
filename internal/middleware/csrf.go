package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mwalcott/taskline/internal/csrf"
)

// CSRFMiddleware enforces the double-submit cookie pattern on
// state-changing API requests.
//
// Safe methods pass through and get a token cookie if missing. Unsafe
// methods must echo the cookie value in the X-CSRF-Token header. Login
// and registration are exempt since no token cookie exists before the
// first response.
type CSRFMiddleware struct {
	isSecure bool
	logger   *slog.Logger
}

// NewCSRFMiddleware creates a new CSRF middleware.
func NewCSRFMiddleware(isSecure bool, logger *slog.Logger) *CSRFMiddleware {
	return &CSRFMiddleware{
		isSecure: isSecure,
		logger:   logger,
	}
}

// exemptPaths are unsafe-method endpoints reachable without a prior
// response that could have set the token cookie. Logout is included so
// non-browser clients can end a session without first fetching a token;
// it is idempotent and only ever clears the caller's own cookie.
var exemptPaths = map[string]bool{
	"/api/auth/login":    true,
	"/api/auth/register": true,
	"/api/auth/logout":   true,
}

// Handler returns middleware that validates CSRF tokens.
func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if _, err := csrf.EnsureToken(w, r, m.isSecure); err != nil {
				m.logger.Error("failed to generate csrf token", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		if exemptPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		if !csrf.ValidateRequest(r) {
			m.logger.Warn("csrf validation failed",
				"method", r.Method,
				"path", r.URL.Path,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"code":"forbidden","message":"CSRF token missing or invalid"}}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
