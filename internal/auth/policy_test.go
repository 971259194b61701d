package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	authlib "example.com/planner/pkg/auth"
)

func TestScopePolicy(t *testing.T) {
	reader := &Claims{Subject: "o", Scopes: []string{ScopePlannerRead}}
	writer := &Claims{Subject: "o", Scopes: []string{ScopePlannerWrite}}
	none := &Claims{Subject: "o"}

	require.True(t, CanRead(reader))
	require.False(t, CanWrite(reader))
	require.True(t, CanRead(writer))
	require.True(t, CanWrite(writer))
	require.False(t, CanRead(none))
	require.False(t, CanRead(nil))
}

func TestMiddlewareLeavesProbesPublic(t *testing.T) {
	handler := Middleware(authlib.Config{Secret: "s", Issuer: "i"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for path, want := range map[string]int{
		"/healthz":       http.StatusOK,
		"/metrics":       http.StatusOK,
		"/v1/activities": http.StatusUnauthorized,
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, want, rec.Code, path)
	}
}
