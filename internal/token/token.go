// Package token implements the signed session token used for authentication.
//
// A session token is a compact JWS (header.claims.signature, three base64url
// segments) signed with HMAC-SHA256 using a process-wide secret. Tokens are
// self-contained: no server-side session store exists, and a token is valid
// exactly until its embedded expiry.
//
// Two Codec implementations are provided:
//
//   - JWTCodec builds on github.com/golang-jwt/jwt/v5 and is used by the
//     application server.
//   - HMACCodec is implemented on crypto/hmac and encoding/json only, for the
//     request gateway build which must not carry the jwt dependency.
//
// Both implementations speak the identical wire format. A token issued by one
// verifies under the other; any divergence between them is a bug, and the
// package tests exercise the contract in both directions.
package token

import (
	"errors"
	"time"
)

const (
	// TTL is the fixed validity window of a session token.
	// There is no refresh mechanism: after 24 hours the user logs in again.
	TTL = 24 * time.Hour

	// signingAlg is the only accepted signing algorithm. Tokens carrying
	// any other alg value are rejected outright.
	signingAlg = "HS256"
)

// ErrInvalidToken is returned by Verify for every failure mode: malformed
// structure, signature mismatch, and expiry. Callers must not be able to
// distinguish which one occurred.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the identity payload carried by a session token.
type Claims struct {
	UserID string // Required. Matches a persisted user record.
	Email  string // Required.
	Name   string // Optional display name.
}

// Codec issues and verifies session tokens.
//
// Implementations must agree on wire format and validity semantics: same
// algorithm, same claim key names, no clock-skew tolerance.
type Codec interface {
	// Issue encodes claims into a signed token expiring TTL from now.
	Issue(claims Claims) (string, error)

	// Verify decodes and validates a token, returning its claims.
	// Returns ErrInvalidToken for any malformed, tampered, or expired input.
	Verify(token string) (Claims, error)
}
