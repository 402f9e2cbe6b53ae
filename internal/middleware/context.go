// Package middleware provides HTTP middleware for the request handler API.
package middleware

import (
	"context"

	"github.com/swiftel/request-handler/internal/app/domain/user"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	userNameKey contextKey = "user_name"
	roleKey     contextKey = "role"
)

// WithIdentity stores the authenticated identity on the context.
func WithIdentity(ctx context.Context, userID, name string, role user.Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, userNameKey, name)
	return context.WithValue(ctx, roleKey, role)
}

// GetUserID returns the authenticated user id, or "" when unauthenticated.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// GetUserName returns the authenticated display name.
func GetUserName(ctx context.Context) string {
	name, _ := ctx.Value(userNameKey).(string)
	return name
}

// GetRole returns the authenticated role, or "" when unauthenticated.
func GetRole(ctx context.Context) user.Role {
	role, _ := ctx.Value(roleKey).(user.Role)
	return role
}
