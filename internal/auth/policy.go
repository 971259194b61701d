// Package auth applies the planner's scope policy on top of pkg/auth tokens.
package auth

import (
	"context"
	"net/http"

	authlib "example.com/planner/pkg/auth"
)

// Scopes granted to planner tokens.
const (
	ScopePlannerRead  = "planner:read"
	ScopePlannerWrite = "planner:write"
)

// Claims is the verified token identity.
type Claims = authlib.Claims

// publicPaths are served without a token.
var publicPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// Middleware authenticates every request except the health and metrics endpoints.
func Middleware(cfg authlib.Config) func(http.Handler) http.Handler {
	return authlib.Authenticate(cfg, func(r *http.Request) bool {
		return publicPaths[r.URL.Path]
	})
}

// FromContext returns the claims of an authenticated request.
func FromContext(ctx context.Context) (*Claims, bool) {
	return authlib.FromContext(ctx)
}

// CanRead reports whether claims may read the owner's planner. Write implies read.
func CanRead(claims *Claims) bool {
	return claims.HasScope(ScopePlannerRead) || claims.HasScope(ScopePlannerWrite)
}

// CanWrite reports whether claims may modify the owner's planner.
func CanWrite(claims *Claims) bool {
	return claims.HasScope(ScopePlannerWrite)
}
