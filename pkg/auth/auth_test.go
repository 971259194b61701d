package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "planner.test"}

func TestIssueAndParse(t *testing.T) {
	token, err := Issue(testConfig, "owner-1", []string{"planner:read", "planner:write"}, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, "owner-1", claims.Subject)
	require.Equal(t, []string{"planner:read", "planner:write"}, claims.Scopes)
	require.True(t, claims.HasScope("planner:write"))
	require.False(t, claims.HasScope("admin"))
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
	require.WithinDuration(t, time.Now(), claims.IssuedAt, time.Minute)
}

func TestParseRejectsBadTokens(t *testing.T) {
	wrongSecret, err := Issue(Config{Secret: "other", Issuer: testConfig.Issuer}, "owner-1", nil, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := Issue(Config{Secret: testConfig.Secret, Issuer: "someone-else"}, "owner-1", nil, time.Hour)
	require.NoError(t, err)
	expired, err := Issue(testConfig, "owner-1", nil, -time.Minute)
	require.NoError(t, err)
	noSubject, err := Issue(testConfig, "", nil, time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "owner-1", Issuer: testConfig.Issuer,
	}).SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"secret":    wrongSecret,
		"issuer":    wrongIssuer,
		"expired":   expired,
		"subject":   noSubject,
		"no expiry": noExpiry,
		"garbage":   "not.a.jwt",
	} {
		_, err := Parse(token, testConfig)
		require.ErrorIs(t, err, ErrInvalidToken, name)
	}

	_, err = Parse("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestAuthenticateStoresClaims(t *testing.T) {
	token, err := Issue(testConfig, "owner-9", []string{"planner:read"}, time.Hour)
	require.NoError(t, err)

	var seen string
	handler := Authenticate(testConfig, func(r *http.Request) bool { return r.URL.Path == "/healthz" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = OwnerID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "owner-9", seen)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/activities", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, `Bearer realm="planner"`, rr.Header().Get("WWW-Authenticate"))
	require.JSONEq(t, `{"type":"unauthorized","detail":"missing bearer token"}`, rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.JSONEq(t, `{"type":"unauthorized","detail":"invalid bearer token"}`, rr.Body.String())

	seen = ""
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/healthz", nil),
		httptest.NewRequest(http.MethodOptions, "/v1/activities", nil),
	} {
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusNoContent, rr.Code)
	}
	require.Empty(t, seen)
}
