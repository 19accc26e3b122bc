package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-do-not-use-in-production"

func testClaims() Claims {
	return Claims{
		UserID: "3f1c9a2e-7b44-4d61-9c2f-8a5d0e6b1c33",
		Email:  "alice@example.com",
		Name:   "Alice Example",
	}
}

// codecs returns both implementations keyed by name so every test runs
// against each of them.
func codecs(secret string) map[string]Codec {
	return map[string]Codec{
		"jwt":  NewJWTCodec(secret),
		"hmac": NewHMACCodec(secret),
	}
}

// setNow pins the codec's clock for expiry testing.
func setNow(c Codec, now func() time.Time) {
	switch impl := c.(type) {
	case *JWTCodec:
		impl.now = now
	case *HMACCodec:
		impl.now = now
	}
}

// =============================================================================
// Round-trip
// =============================================================================

func TestCodec_RoundTrip(t *testing.T) {
	for name, codec := range codecs(testSecret) {
		t.Run(name, func(t *testing.T) {
			issued, err := codec.Issue(testClaims())
			require.NoError(t, err)
			assert.Len(t, strings.Split(issued, "."), 3, "token must have three segments")

			got, err := codec.Verify(issued)
			require.NoError(t, err)
			assert.Equal(t, testClaims(), got)
		})
	}
}

func TestCodec_RoundTrip_NoName(t *testing.T) {
	claims := Claims{UserID: "u-1", Email: "bob@example.com"}

	for name, codec := range codecs(testSecret) {
		t.Run(name, func(t *testing.T) {
			issued, err := codec.Issue(claims)
			require.NoError(t, err)

			got, err := codec.Verify(issued)
			require.NoError(t, err)
			assert.Equal(t, claims, got)
		})
	}
}

// =============================================================================
// Cross-implementation contract
//
// The gateway (HMACCodec) and the server (JWTCodec) must accept each other's
// tokens. These tests are the wire-format contract between the two.
// =============================================================================

func TestCodec_CrossVerify(t *testing.T) {
	jwtCodec := NewJWTCodec(testSecret)
	hmacCodec := NewHMACCodec(testSecret)

	t.Run("issued by jwt, verified by hmac", func(t *testing.T) {
		issued, err := jwtCodec.Issue(testClaims())
		require.NoError(t, err)

		got, err := hmacCodec.Verify(issued)
		require.NoError(t, err)
		assert.Equal(t, testClaims(), got)
	})

	t.Run("issued by hmac, verified by jwt", func(t *testing.T) {
		issued, err := hmacCodec.Issue(testClaims())
		require.NoError(t, err)

		got, err := jwtCodec.Verify(issued)
		require.NoError(t, err)
		assert.Equal(t, testClaims(), got)
	})
}

// =============================================================================
// Signature integrity
// =============================================================================

func TestCodec_TamperedSignature(t *testing.T) {
	issuer := NewJWTCodec(testSecret)
	issued, err := issuer.Issue(testClaims())
	require.NoError(t, err)

	parts := strings.Split(issued, ".")
	require.Len(t, parts, 3)

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)

	for name, codec := range codecs(testSecret) {
		t.Run(name, func(t *testing.T) {
			// Flipping any single byte of the signature must fail verification.
			for i := range sig {
				mutated := make([]byte, len(sig))
				copy(mutated, sig)
				mutated[i] ^= 0x01
				tampered := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(mutated)

				_, err := codec.Verify(tampered)
				assert.ErrorIs(t, err, ErrInvalidToken, "byte %d", i)
			}
		})
	}
}

func TestCodec_TamperedPayload(t *testing.T) {
	hmacCodec := NewHMACCodec(testSecret)
	issued, err := hmacCodec.Issue(testClaims())
	require.NoError(t, err)

	parts := strings.Split(issued, ".")
	forged, err := NewHMACCodec("other-secret").Issue(Claims{UserID: "evil", Email: "evil@example.com"})
	require.NoError(t, err)
	forgedParts := strings.Split(forged, ".")

	// Payload swapped in from a token signed with a different secret.
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]

	for name, codec := range codecs(testSecret) {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Verify(spliced)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestCodec_WrongSecret(t *testing.T) {
	issued, err := NewJWTCodec(testSecret).Issue(testClaims())
	require.NoError(t, err)

	for name, codec := range codecs("a-different-secret") {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Verify(issued)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

// =============================================================================
// Expiry
// =============================================================================

func TestCodec_ExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for issuerName, issuer := range codecs(testSecret) {
		setNow(issuer, func() time.Time { return issuedAt })
		issued, err := issuer.Issue(testClaims())
		require.NoError(t, err)

		for verifierName, verifier := range codecs(testSecret) {
			t.Run(issuerName+"/"+verifierName, func(t *testing.T) {
				// One second before expiry: still valid.
				setNow(verifier, func() time.Time { return issuedAt.Add(TTL - time.Second) })
				_, err := verifier.Verify(issued)
				assert.NoError(t, err, "token should be valid just before expiry")

				// One second after expiry: invalid.
				setNow(verifier, func() time.Time { return issuedAt.Add(TTL + time.Second) })
				_, err = verifier.Verify(issued)
				assert.ErrorIs(t, err, ErrInvalidToken, "token should be invalid just after expiry")
			})
		}
	}
}

// =============================================================================
// Malformed input
// =============================================================================

func TestCodec_MalformedTokens(t *testing.T) {
	malformed := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"one segment", "abc"},
		{"two segments", "abc.def"},
		{"four segments", "a.b.c.d"},
		{"not base64", "!!!.???.###"},
		{"garbage payload", base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + ".bm90anNvbg.c2ln"},
	}

	for name, codec := range codecs(testSecret) {
		for _, tc := range malformed {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				_, err := codec.Verify(tc.input)
				assert.ErrorIs(t, err, ErrInvalidToken)
			})
		}
	}
}

func TestCodec_RejectsUnsignedAlg(t *testing.T) {
	// A token claiming alg "none" with an empty signature must never verify.
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := enc.EncodeToString([]byte(`{"userId":"u-1","email":"a@b.c","exp":9999999999}`))
	unsigned := header + "." + payload + "."

	for name, codec := range codecs(testSecret) {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Verify(unsigned)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestCodec_RejectsMissingIdentity(t *testing.T) {
	// A correctly signed token without the required identity claims is
	// still rejected.
	issued, err := NewHMACCodec(testSecret).Issue(Claims{Email: "no-user-id@example.com"})
	require.NoError(t, err)

	for name, codec := range codecs(testSecret) {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Verify(issued)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
