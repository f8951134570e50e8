package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soralab/paywall/pkg/jwt"
)

type identityTestClaims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
}

func TestGenerateAndParse(t *testing.T) {
	svc, err := jwt.NewFromString("test-signing-key-at-least-32-bytes!!")
	require.NoError(t, err)

	claims := identityTestClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   "user-123",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
		Email: "user@example.com",
	}

	token, err := svc.Generate(claims)
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	var parsed identityTestClaims
	require.NoError(t, svc.Parse(token, &parsed))
	assert.Equal(t, "user-123", parsed.Subject)
	assert.Equal(t, "user@example.com", parsed.Email)
}

func TestParseFailures(t *testing.T) {
	svc, err := jwt.NewFromString("test-signing-key-at-least-32-bytes!!")
	require.NoError(t, err)

	t.Run("malformed token", func(t *testing.T) {
		var c identityTestClaims
		assert.ErrorIs(t, svc.Parse("not-a-token", &c), jwt.ErrInvalidToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := jwt.NewFromString("another-key-that-does-not-match!!!!")
		require.NoError(t, err)

		token, err := other.Generate(identityTestClaims{
			StandardClaims: jwt.StandardClaims{Subject: "user-123"},
		})
		require.NoError(t, err)

		var c identityTestClaims
		assert.ErrorIs(t, svc.Parse(token, &c), jwt.ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		token, err := svc.Generate(identityTestClaims{
			StandardClaims: jwt.StandardClaims{Subject: "user-123"},
		})
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		tampered := parts[0] + "." + parts[1] + "x." + parts[2]

		var c identityTestClaims
		assert.ErrorIs(t, svc.Parse(tampered, &c), jwt.ErrInvalidSignature)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.Generate(identityTestClaims{
			StandardClaims: jwt.StandardClaims{
				Subject:   "user-123",
				ExpiresAt: time.Now().Add(-time.Minute).Unix(),
			},
		})
		require.NoError(t, err)

		var c identityTestClaims
		assert.ErrorIs(t, svc.Parse(token, &c), jwt.ErrExpiredToken)
	})
}

func TestBearerTokenExtractor(t *testing.T) {
	t.Run("valid header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer abc.def.ghi")

		token, err := jwt.BearerTokenExtractor(r)
		require.NoError(t, err)
		assert.Equal(t, "abc.def.ghi", token)
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err := jwt.BearerTokenExtractor(r)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		_, err := jwt.BearerTokenExtractor(r)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})
}
