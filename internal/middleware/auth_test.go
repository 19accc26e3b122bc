package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mwalcott/taskline/internal/auth"
	"github.com/mwalcott/taskline/internal/session"
	"github.com/mwalcott/taskline/internal/token"
)

const testSecret = "gatekeeper-test-secret"

// =============================================================================
// Test Helpers
// =============================================================================

// newTestLogger creates a logger that discards output for testing.
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGatekeeper(t *testing.T) *Gatekeeper {
	t.Helper()
	extractor := session.NewExtractor(token.NewHMACCodec(testSecret), newTestLogger())
	return NewGatekeeper(extractor, newTestLogger(), false)
}

func validToken(t *testing.T) string {
	t.Helper()
	issued, err := token.NewJWTCodec(testSecret).Issue(token.Claims{
		UserID: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		Email:  "dana@example.com",
		Name:   "Dana",
	})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return issued
}

func expiredToken(t *testing.T) string {
	t.Helper()
	past := time.Now().Add(-token.TTL - time.Hour)
	issued, err := token.NewHMACCodecAt(testSecret, func() time.Time { return past }).
		Issue(token.Claims{UserID: "u-1", Email: "old@example.com"})
	if err != nil {
		t.Fatalf("failed to issue expired token: %v", err)
	}
	return issued
}

// okHandler records that it ran and what the request looked like when it did.
type okHandler struct {
	called  bool
	request *http.Request
}

func (h *okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.request = r
	w.WriteHeader(http.StatusOK)
}

func doRequest(t *testing.T, g *Gatekeeper, path, cookie string) (*httptest.ResponseRecorder, *okHandler) {
	t.Helper()
	next := &okHandler{}
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		r.Header.Set("Cookie", session.CookieName+"="+cookie)
	}
	w := httptest.NewRecorder()
	g.Handler(next).ServeHTTP(w, r)
	return w, next
}

// =============================================================================
// Classification
// =============================================================================

func TestGatekeeper_PublicPathAlwaysAllows(t *testing.T) {
	g := newTestGatekeeper(t)

	testCases := []struct {
		name   string
		cookie string
	}{
		{"no cookie", ""},
		{"valid cookie", validToken(t)},
		{"expired cookie", expiredToken(t)},
		{"garbage cookie", "not-a-token"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, next := doRequest(t, g, "/login", tc.cookie)
			if !next.called {
				t.Fatal("handler not reached on public path")
			}
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", w.Code)
			}
		})
	}
}

func TestGatekeeper_UnclassifiedPathIsDefaultOpen(t *testing.T) {
	g := newTestGatekeeper(t)

	w, next := doRequest(t, g, "/pricing", "")
	if !next.called {
		t.Fatal("unclassified path should pass through without a cookie")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestGatekeeper_PublicEntryWinsOverProtectedPrefix(t *testing.T) {
	// /api/auth/verify is public even though /api is protected.
	g := newTestGatekeeper(t)

	_, next := doRequest(t, g, "/api/auth/verify", "")
	if !next.called {
		t.Fatal("/api/auth/verify must be reachable anonymously")
	}
}

// =============================================================================
// Protected page paths
// =============================================================================

func TestGatekeeper_ProtectedNoCookie_RedirectsWithReturnPath(t *testing.T) {
	g := newTestGatekeeper(t)

	w, next := doRequest(t, g, "/dashboard", "")
	if next.called {
		t.Fatal("handler must not run without a session")
	}
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/login?redirect=/dashboard" {
		t.Errorf("Location = %q, want /login?redirect=/dashboard", got)
	}
}

func TestGatekeeper_ProtectedExpiredCookie_RedirectsAndClearsCookie(t *testing.T) {
	g := newTestGatekeeper(t)

	w, next := doRequest(t, g, "/dashboard", expiredToken(t))
	if next.called {
		t.Fatal("handler must not run with an expired session")
	}
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/login" {
		t.Errorf("Location = %q, want /login", got)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != session.CookieName {
		t.Fatalf("expected a %s cookie to be cleared, got %v", session.CookieName, cookies)
	}
	if cookies[0].MaxAge >= 0 {
		t.Errorf("cookie MaxAge = %d, want negative (delete)", cookies[0].MaxAge)
	}
}

func TestGatekeeper_ProtectedValidCookie_AllowsAndPropagatesIdentity(t *testing.T) {
	g := newTestGatekeeper(t)

	w, next := doRequest(t, g, "/dashboard", validToken(t))
	if !next.called {
		t.Fatal("handler should run with a valid session")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	if got := next.request.Header.Get(HeaderUserID); got != "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee" {
		t.Errorf("%s = %q", HeaderUserID, got)
	}
	if got := next.request.Header.Get(HeaderUserEmail); got != "dana@example.com" {
		t.Errorf("%s = %q", HeaderUserEmail, got)
	}

	identity := auth.GetIdentity(next.request.Context())
	if identity == nil || identity.Email != "dana@example.com" {
		t.Errorf("identity not bound to context: %+v", identity)
	}
}

// =============================================================================
// Protected API paths
// =============================================================================

func TestGatekeeper_ProtectedAPIPath_Returns401JSON(t *testing.T) {
	g := newTestGatekeeper(t)

	next := &okHandler{}
	r := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	r.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	g.Handler(next).ServeHTTP(w, r)

	if next.called {
		t.Fatal("handler must not run without a session")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("Content-Type = %q, want JSON", ct)
	}
	if !strings.Contains(w.Body.String(), "unauthorized") {
		t.Errorf("body missing error code: %s", w.Body.String())
	}
}

// =============================================================================
// Header spoofing
// =============================================================================

func TestGatekeeper_StripsSpoofedIdentityHeaders(t *testing.T) {
	g := newTestGatekeeper(t)

	testCases := []struct {
		name   string
		path   string
		cookie string
	}{
		{"public path", "/login", ""},
		{"default-open path", "/pricing", ""},
		{"protected path with valid cookie", "/dashboard", validToken(t)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next := &okHandler{}
			r := httptest.NewRequest(http.MethodGet, tc.path, nil)
			r.Header.Set(HeaderUserID, "spoofed-id")
			r.Header.Set(HeaderUserEmail, "spoofed@example.com")
			if tc.cookie != "" {
				r.Header.Set("Cookie", session.CookieName+"="+tc.cookie)
			}
			w := httptest.NewRecorder()
			g.Handler(next).ServeHTTP(w, r)

			if !next.called {
				t.Fatal("handler not reached")
			}
			if got := next.request.Header.Get(HeaderUserID); got == "spoofed-id" {
				t.Error("spoofed user id header survived the gatekeeper")
			}
			if got := next.request.Header.Get(HeaderUserEmail); got == "spoofed@example.com" {
				t.Error("spoofed email header survived the gatekeeper")
			}
		})
	}
}

// =============================================================================
// RequireIdentity
// =============================================================================

func TestRequireIdentity_RejectsAnonymous(t *testing.T) {
	extractor := session.NewExtractor(token.NewJWTCodec(testSecret), newTestLogger())
	m := NewRequireIdentity(extractor, newTestLogger())

	next := &okHandler{}
	r := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	r.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(w, r)

	if next.called {
		t.Fatal("handler must not run anonymously")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireIdentity_GuardsNestedMux(t *testing.T) {
	extractor := session.NewExtractor(token.NewJWTCodec(testSecret), newTestLogger())
	m := NewRequireIdentity(extractor, newTestLogger())

	var gotTaskID string
	inner := http.NewServeMux()
	inner.HandleFunc("GET /api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotTaskID = r.PathValue("id")
		w.WriteHeader(http.StatusOK)
	})
	guarded := m.Handler(inner)

	// Anonymous request is rejected before routing.
	r := httptest.NewRequest(http.MethodGet, "/api/tasks/t-42", nil)
	r.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	guarded.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", w.Code)
	}

	// Authenticated request reaches the route with path values intact.
	r = httptest.NewRequest(http.MethodGet, "/api/tasks/t-42", nil)
	r.Header.Set("Cookie", session.CookieName+"="+validToken(t))
	w = httptest.NewRecorder()
	guarded.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", w.Code)
	}
	if gotTaskID != "t-42" {
		t.Errorf("path value = %q, want %q", gotTaskID, "t-42")
	}
}

func TestRequireIdentity_VerifiesCookieWhenContextEmpty(t *testing.T) {
	extractor := session.NewExtractor(token.NewJWTCodec(testSecret), newTestLogger())
	m := NewRequireIdentity(extractor, newTestLogger())

	next := &okHandler{}
	r := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	r.Header.Set("Cookie", session.CookieName+"="+validToken(t))
	w := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(w, r)

	if !next.called {
		t.Fatal("handler should run with a valid cookie")
	}
	if identity := auth.GetIdentity(next.request.Context()); identity == nil {
		t.Error("identity not bound to context")
	}
}
