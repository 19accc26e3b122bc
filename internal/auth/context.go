// Package auth provides authentication context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/mwalcott/taskline/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// identityContextKey is the key used to store the verified identity in context.
	identityContextKey contextKey = "identity"
)

// GetIdentity retrieves the verified identity from the context.
//
// Returns nil if the request is anonymous.
//
// Usage:
//
//	identity := auth.GetIdentity(r.Context())
//	if identity == nil {
//	    // Handle unauthenticated request
//	}
func GetIdentity(ctx context.Context) *session.Identity {
	identity, ok := ctx.Value(identityContextKey).(*session.Identity)
	if !ok {
		return nil
	}
	return identity
}

// GetIdentityFromRequest retrieves the verified identity from the request context.
//
// This is a convenience wrapper around GetIdentity that takes the request directly.
func GetIdentityFromRequest(r *http.Request) *session.Identity {
	return GetIdentity(r.Context())
}

// SetIdentity stores a verified identity in the context.
//
// This is called by the gatekeeper middleware after the session token has
// been verified; handlers must never call it with unverified input.
func SetIdentity(ctx context.Context, identity *session.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
