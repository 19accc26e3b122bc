package session

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mwalcott/taskline/internal/token"
)

// Identity is the trusted output of a successful token verification.
// It lives for a single request and is never persisted by this package.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Extractor locates the session token on a request and turns it into a
// verified Identity.
type Extractor struct {
	codec  token.Codec
	logger *slog.Logger
}

// NewExtractor creates an Extractor backed by the given codec.
func NewExtractor(codec token.Codec, logger *slog.Logger) *Extractor {
	return &Extractor{
		codec:  codec,
		logger: logger,
	}
}

// ExtractIdentity returns the verified identity carried by the request's
// session cookie, or nil when there is none.
//
// Every failure path converges on nil: missing cookie header, no session
// cookie among the pairs, and a value that fails verification are all the
// same anonymous request. Deciding what to do about an anonymous request is
// the caller's job. This function never panics on malformed input.
func (e *Extractor) ExtractIdentity(r *http.Request) *Identity {
	raw := TokenFromCookieHeader(r.Header.Get("Cookie"))
	if raw == "" {
		return nil
	}

	identity := e.VerifyValue(raw)
	if identity == nil {
		// Operational visibility only; the caller sees the same nil as
		// a missing cookie.
		e.logger.Debug("session token rejected", "path", r.URL.Path)
	}
	return identity
}

// VerifyValue verifies a raw token value and maps its claims to an Identity.
// Returns nil on any verification failure.
func (e *Extractor) VerifyValue(raw string) *Identity {
	claims, err := e.codec.Verify(raw)
	if err != nil {
		return nil
	}
	return &Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
	}
}

// TokenFromCookieHeader pulls the session token out of a raw Cookie header.
//
// The header is parsed by hand rather than via r.Cookie so that malformed
// sibling pairs are skipped instead of poisoning the whole header: pairs are
// split on ";", trimmed, and split on the first "=". A pair with no "=" is
// ignored.
func TokenFromCookieHeader(header string) string {
	if header == "" {
		return ""
	}

	for _, pair := range strings.Split(header, ";") {
		pair = strings.TrimSpace(pair)
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if name == CookieName {
			return value
		}
	}
	return ""
}
