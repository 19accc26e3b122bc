package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtClaims maps Claims onto JWT claim keys. The json tags ARE the wire
// format; HMACCodec uses the same key names and must stay in sync.
type jwtClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTCodec implements Codec using golang-jwt. This is the implementation the
// application server uses for issuing tokens at login and verifying them in
// handlers.
type JWTCodec struct {
	secret []byte
	now    func() time.Time
}

// NewJWTCodec creates a JWTCodec signing with the given secret.
func NewJWTCodec(secret string) *JWTCodec {
	return NewJWTCodecAt(secret, time.Now)
}

// NewJWTCodecAt creates a JWTCodec with an injected clock. Tests use this to
// issue and verify tokens at fixed points in time.
func NewJWTCodecAt(secret string, now func() time.Time) *JWTCodec {
	return &JWTCodec{
		secret: []byte(secret),
		now:    now,
	}
}

// Issue encodes claims into a signed HS256 token expiring TTL from now.
func (c *JWTCodec) Issue(claims Claims) (string, error) {
	now := c.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	})
	return t.SignedString(c.secret)
}

// Verify decodes and validates a token. All parse, signature, and expiry
// failures collapse to ErrInvalidToken.
func (c *JWTCodec) Verify(tokenString string) (Claims, error) {
	var parsed jwtClaims
	t, err := jwt.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil || !t.Valid {
		return Claims{}, ErrInvalidToken
	}

	if parsed.UserID == "" || parsed.Email == "" {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		UserID: parsed.UserID,
		Email:  parsed.Email,
		Name:   parsed.Name,
	}, nil
}

var _ Codec = (*JWTCodec)(nil)
