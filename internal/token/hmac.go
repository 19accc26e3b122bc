package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// HMACCodec implements Codec with nothing beyond crypto/hmac and
// encoding/json. The request gateway links this implementation because its
// build must stay dependency-light; it produces and accepts exactly the same
// tokens as JWTCodec.
type HMACCodec struct {
	secret []byte
	now    func() time.Time
}

// NewHMACCodec creates an HMACCodec signing with the given secret.
func NewHMACCodec(secret string) *HMACCodec {
	return NewHMACCodecAt(secret, time.Now)
}

// NewHMACCodecAt creates an HMACCodec with an injected clock. Tests use this
// to issue and verify tokens at fixed points in time.
func NewHMACCodecAt(secret string, now func() time.Time) *HMACCodec {
	return &HMACCodec{
		secret: []byte(secret),
		now:    now,
	}
}

// hmacHeader is the fixed JOSE header. Marshalled field order matches the
// canonical {"alg":...,"typ":...} layout golang-jwt emits.
type hmacHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// hmacPayload mirrors jwtClaims on the wire: same claim keys, exp and iat as
// unix seconds.
type hmacPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Iat    int64  `json:"iat"`
	Exp    int64  `json:"exp"`
}

// Issue encodes claims into a signed HS256 token expiring TTL from now.
func (c *HMACCodec) Issue(claims Claims) (string, error) {
	now := c.now()

	headerJSON, err := json.Marshal(hmacHeader{Alg: signingAlg, Typ: "JWT"})
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(hmacPayload{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Iat:    now.Unix(),
		Exp:    now.Add(TTL).Unix(),
	})
	if err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString(headerJSON) + "." + enc.EncodeToString(payloadJSON)
	return signingInput + "." + enc.EncodeToString(c.sign(signingInput)), nil
}

// Verify decodes and validates a token. All structural, signature, and expiry
// failures collapse to ErrInvalidToken.
func (c *HMACCodec) Verify(tokenString string) (Claims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}

	enc := base64.RawURLEncoding

	// Signature check comes first: an attacker learns nothing about the
	// payload from a token they could not sign.
	sig, err := enc.DecodeString(parts[2])
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	expected := c.sign(parts[0] + "." + parts[1])
	if !hmac.Equal(sig, expected) {
		return Claims{}, ErrInvalidToken
	}

	headerJSON, err := enc.DecodeString(parts[0])
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var header hmacHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if header.Alg != signingAlg {
		return Claims{}, ErrInvalidToken
	}

	payloadJSON, err := enc.DecodeString(parts[1])
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var payload hmacPayload
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return Claims{}, ErrInvalidToken
	}

	// No clock-skew tolerance: the JWTCodec applies none either, and any
	// difference here would make the two implementations disagree.
	if payload.Exp == 0 || !c.now().Before(time.Unix(payload.Exp, 0)) {
		return Claims{}, ErrInvalidToken
	}

	if payload.UserID == "" || payload.Email == "" {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		UserID: payload.UserID,
		Email:  payload.Email,
		Name:   payload.Name,
	}, nil
}

func (c *HMACCodec) sign(input string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(input))
	return mac.Sum(nil)
}

var _ Codec = (*HMACCodec)(nil)
