package adminhttp_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"stroma/internal/adminhttp"
)

const testSecret = "test-admin-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	auth := adminhttp.NewAuthenticator(adminhttp.AuthConfig{Enabled: true, HMACSecret: testSecret}, nil)
	handler := adminhttp.New(auth, func() (bool, string) { return true, "ok" })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestHealthzReportsUnhealthy(t *testing.T) {
	handler := adminhttp.New(nil, func() (bool, string) { return false, "overlay unreachable" })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "overlay unreachable", rec.Body.String())
}

func TestMetricsRejectsMissingToken(t *testing.T) {
	auth := adminhttp.NewAuthenticator(adminhttp.AuthConfig{Enabled: true, HMACSecret: testSecret}, nil)
	handler := adminhttp.New(auth, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsAcceptsValidToken(t *testing.T) {
	auth := adminhttp.NewAuthenticator(adminhttp.AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "stroma-admin"}, nil)
	handler := adminhttp.New(auth, nil)

	token := signToken(t, jwt.MapClaims{
		"iss": "stroma-admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsRejectsWrongIssuer(t *testing.T) {
	auth := adminhttp.NewAuthenticator(adminhttp.AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "stroma-admin"}, nil)
	handler := adminhttp.New(auth, nil)

	token := signToken(t, jwt.MapClaims{"iss": "someone-else"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsDisabledAuthAllowsAnyRequest(t *testing.T) {
	auth := adminhttp.NewAuthenticator(adminhttp.AuthConfig{Enabled: false}, nil)
	handler := adminhttp.New(auth, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
