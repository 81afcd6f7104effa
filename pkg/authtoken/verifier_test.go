package authtoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/carelink_backend/config"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := New(config.AuthenticationConfig{
		JWTSecret: "super-secret-jwt-token-with-at-least-32-characters",
		Issuer:    "https://auth.example.test/auth/v1",
		Audience:  "authenticated",
	})
	require.NoError(t, err)
	return v
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(config.AuthenticationConfig{})
	assert.Error(t, err)
}

func TestVerifyRoundTrip(t *testing.T) {
	v := newTestVerifier(t)
	uid := uuid.New()

	raw, err := v.Sign(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email:     "pat@example.com",
		SessionID: "sess-1",
	})
	require.NoError(t, err)

	claims, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, uid, claims.GetUserID())
	assert.Equal(t, "pat@example.com", claims.GetEmail())
	assert.Equal(t, "sess-1", claims.GetSessionID())
	assert.False(t, claims.IsExpired())
	assert.Greater(t, claims.TTL(), time.Duration(0))
}

func TestVerifyRejects(t *testing.T) {
	v := newTestVerifier(t)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	t.Run("expired", func(t *testing.T) {
		raw, _ := v.Sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}})
		_, err := v.Verify(raw)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		raw, _ := v.Sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "https://evil.example",
			ExpiresAt: exp,
		}})
		_, err := v.Verify(raw)
		assert.Error(t, err)
	})

	t.Run("subject not a uuid", func(t *testing.T) {
		raw, _ := v.Sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "service-role",
			ExpiresAt: exp,
		}})
		_, err := v.Verify(raw)
		assert.Error(t, err)
	})

	t.Run("other secret", func(t *testing.T) {
		other, _ := New(config.AuthenticationConfig{JWTSecret: "another-secret-entirely-0123456789"})
		raw, _ := other.Sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: exp,
		}})
		_, err := v.Verify(raw)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := v.Verify("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, err = BearerToken("bearer   xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	_, err = BearerToken("Basic abc")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = BearerToken("")
	assert.ErrorIs(t, err, ErrMissingToken)
}
