// Package auth carries the pre-resolved caller role through the request
// context. The role is established upstream (gateway or session layer); the
// engine never verifies sessions or tokens itself.
package auth

import (
	"context"
	"net/http"
)

type ctxKey string

const (
	// RoleHeader carries the role resolved by the upstream auth layer.
	RoleHeader = "X-Caller-Role"

	roleCtxKey = ctxKey("callerRole")

	RoleAdmin    = "admin"
	RoleStandard = "standard"
)

// WithRole stores the caller role in context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleCtxKey, role)
}

// RoleFromContext extracts the caller role, defaulting to standard.
func RoleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(roleCtxKey).(string); ok && v != "" {
		return v
	}
	return RoleStandard
}

// Middleware attaches the pre-resolved caller role to the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get(RoleHeader)
		if role == "" {
			role = RoleStandard
		}
		next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
	})
}
