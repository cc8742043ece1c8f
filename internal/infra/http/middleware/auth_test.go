package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leekyio/api/pkg/domain/shared"
	"github.com/leekyio/api/pkg/logger"
)

const testSecret = "test-secret-for-auth-middleware"

func signToken(t *testing.T, secret, issuer, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(expiresIn).Unix(),
		"iat": time.Now().Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authHandler(t *testing.T, cfg AuthConfig, gotOwner *shared.ID) http.Handler {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetOwnerID(r.Context())
		require.True(t, ok, "owner must be in context inside protected handler")
		*gotOwner = id
		w.WriteHeader(http.StatusOK)
	})
	return Auth(cfg, logger.NewDefault())(next)
}

func TestAuthValidToken(t *testing.T) {
	cfg := AuthConfig{Secret: testSecret}
	ownerID := shared.NewID()

	var gotOwner shared.ID
	h := authHandler(t, cfg, &gotOwner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "", ownerID.String(), time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ownerID, gotOwner)
}

func TestAuthIssuerEnforced(t *testing.T) {
	cfg := AuthConfig{Secret: testSecret, Issuer: "leeky"}
	ownerID := shared.NewID()

	var gotOwner shared.ID
	h := authHandler(t, cfg, &gotOwner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "leeky", ownerID.String(), time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "someone-else", ownerID.String(), time.Hour))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejections(t *testing.T) {
	cfg := AuthConfig{Secret: testSecret}
	ownerID := shared.NewID()

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", "", ownerID.String(), time.Hour)},
		{"expired token", "Bearer " + signToken(t, testSecret, "", ownerID.String(), -time.Hour)},
		{"subject not a uuid", "Bearer " + signToken(t, testSecret, "", "not-a-uuid", time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOwner shared.ID
			h := authHandler(t, cfg, &gotOwner)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.True(t, gotOwner.IsZero(), "handler must not run")
		})
	}
}

func TestAuthRejectsUnexpectedAlgorithm(t *testing.T) {
	cfg := AuthConfig{Secret: testSecret}

	// alg=none style tokens must never pass.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": shared.NewID().String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	var gotOwner shared.ID
	h := authHandler(t, cfg, &gotOwner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
