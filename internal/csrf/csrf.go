// Package csrf provides CSRF protection using the double-submit cookie
// pattern, adapted for a JSON API.
//
// A random token lives in a cookie readable by the frontend, which
// echoes it back in the X-CSRF-Token header on state-changing requests.
// Attackers can make the browser send the cookie cross-origin but
// cannot read it, so they cannot produce the matching header.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
)

const (
	// CookieName is the name of the CSRF token cookie.
	CookieName = "csrf-token"

	// HeaderName is the request header that must echo the cookie value.
	HeaderName = "X-CSRF-Token"

	// TokenLength is the number of random bytes per token.
	TokenLength = 32

	// CookieMaxAge is the cookie lifetime in seconds (1 hour). Shorter
	// than the session cookie so tokens rotate.
	CookieMaxAge = 3600
)

// GenerateToken returns 32 random bytes, base64 URL-encoded.
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ValidateToken compares the cookie token with the header token in
// constant time.
func ValidateToken(cookieToken, headerToken string) bool {
	if cookieToken == "" || headerToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) == 1
}

// ValidateRequest checks the X-CSRF-Token header against the cookie.
func ValidateRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return ValidateToken(cookie.Value, r.Header.Get(HeaderName))
}

// SetCookie sets the CSRF token cookie. It is deliberately not
// HttpOnly so the frontend can read it and echo it in the header.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: false,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenFromRequest returns the token from the request cookie, or "".
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// EnsureToken returns the request's existing token, or generates a new
// one and sets the cookie.
func EnsureToken(w http.ResponseWriter, r *http.Request, isSecure bool) (string, error) {
	if existing := TokenFromRequest(r); existing != "" {
		return existing, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	SetCookie(w, token, isSecure)
	return token, nil
}
