// Package sessionclient is a small client-side session store for programs
// that talk to a Taskline server: CLI tools, integration tests, and other
// services. It answers "who am I right now" by asking the server, caches the
// answer, and collapses concurrent lookups into one request.
package sessionclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

// requestTimeout bounds every call to the server. A hung auth check should
// fail fast rather than stall the caller.
const requestTimeout = 5 * time.Second

// Identity is the authenticated user as reported by the server.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Store caches the current session identity.
//
// Load resolves the identity in two tiers: the full profile endpoint first,
// then the lighter verify endpoint when the former is unreachable or denies
// the request for a reason other than a dead session. A 401 from either tier
// means unauthenticated, which is a valid resolved state, not an error.
type Store struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	mu       sync.Mutex
	identity *Identity
	resolved bool
	loading  chan struct{}
}

// New creates a Store pointed at the given server base URL, e.g.
// "https://app.example.com". The HTTP client carries a cookie jar so the
// session cookie set at login rides subsequent requests.
func New(baseURL string, logger *slog.Logger) *Store {
	jar, _ := cookiejar.New(nil)
	return &Store{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: requestTimeout,
			Jar:     jar,
		},
		logger: logger,
	}
}

// NewWithClient creates a Store with a caller-supplied HTTP client. The
// client's own timeout is respected if set; otherwise requestTimeout applies.
func NewWithClient(baseURL string, client *http.Client, logger *slog.Logger) *Store {
	if client.Timeout == 0 {
		client.Timeout = requestTimeout
	}
	return &Store{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Current returns the cached identity, or nil when unauthenticated or not
// yet loaded. It never blocks.
func (s *Store) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Load resolves the current identity, caching the result. Concurrent calls
// share a single in-flight request. A nil identity with a nil error means
// the server answered and the session is dead.
func (s *Store) Load(ctx context.Context) (*Identity, error) {
	s.mu.Lock()
	if s.resolved {
		identity := s.identity
		s.mu.Unlock()
		return identity, nil
	}
	if s.loading != nil {
		// Another goroutine is already asking the server; wait for it.
		done := s.loading
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		s.mu.Lock()
		identity := s.identity
		s.mu.Unlock()
		return identity, nil
	}
	done := make(chan struct{})
	s.loading = done
	s.mu.Unlock()

	identity, err := s.fetch(ctx)

	s.mu.Lock()
	if err == nil {
		s.identity = identity
		s.resolved = true
	}
	s.loading = nil
	close(done)
	s.mu.Unlock()

	return identity, err
}

// Refresh drops the cached identity and loads it again.
func (s *Store) Refresh(ctx context.Context) (*Identity, error) {
	s.mu.Lock()
	s.identity = nil
	s.resolved = false
	s.mu.Unlock()
	return s.Load(ctx)
}

// Logout posts to the logout endpoint and clears the cached identity. The
// cache is cleared even when the request fails; the error is returned so
// the caller can decide whether to retry.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.identity = nil
	s.resolved = false
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/auth/logout", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("logout returned status %d", resp.StatusCode)
	}
	return nil
}

// fetch asks the server who the current user is.
//
// A 401 from the profile tier is terminal, not a reason to fall back: the
// server answers 401 for missing, invalid, and expired tokens alike, and
// also degrades a valid token whose user row is gone to 401. The verify
// tier would only repeat the same answer from the same cookie.
func (s *Store) fetch(ctx context.Context) (*Identity, error) {
	// Tier 1: full profile
	identity, status, err := s.get(ctx, "/api/auth/user")
	if err == nil {
		switch {
		case status == http.StatusOK:
			return identity, nil
		case status == http.StatusUnauthorized:
			return nil, nil
		}
		// Unexpected status; fall through to the verify tier
		s.logger.Debug("profile endpoint returned unexpected status", "status", status)
	} else {
		s.logger.Debug("profile endpoint unreachable, falling back", "error", err)
	}

	// Tier 2: token verification only
	identity, status, err = s.get(ctx, "/api/auth/verify")
	if err != nil {
		return nil, fmt.Errorf("session check failed: %w", err)
	}
	switch status {
	case http.StatusOK:
		return identity, nil
	case http.StatusUnauthorized:
		return nil, nil
	default:
		return nil, fmt.Errorf("session check returned status %d", status)
	}
}

// get performs a GET against path and decodes the {user: ...} envelope.
func (s *Store) get(ctx context.Context, path string) (*Identity, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var body struct {
		User Identity `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("malformed session response: %w", err)
	}
	return &body.User, resp.StatusCode, nil
}
