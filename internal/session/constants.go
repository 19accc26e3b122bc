// Package session owns the session cookie and the extraction of a verified
// identity from an inbound request. It is imported by both the handler and
// middleware packages.
package session

import (
	"net/http"
	"time"

	"github.com/mwalcott/taskline/internal/token"
)

const (
	// CookieName is the name of the cookie that stores the session token.
	CookieName = "auth-token"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// CookieMaxAge sets the cookie expiration (24 hours = 86400 seconds).
	// This matches token.TTL: the cookie and the token it carries expire
	// together.
	CookieMaxAge = int(token.TTL / time.Second)
)

// SetCookie writes the session cookie carrying a signed token.
//
// Cookie settings:
// - HttpOnly: true - inaccessible to page scripts
// - Secure: configurable - true outside local development
// - SameSite: Strict - the cookie never rides a cross-site request
// - Path: / - sent with all requests
// - MaxAge: 24 hours - matches token.TTL
func SetCookie(w http.ResponseWriter, tokenValue string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tokenValue,
		Path:     CookiePath,
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie instructs the client to delete the session cookie by setting
// MaxAge to -1.
func ClearCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
