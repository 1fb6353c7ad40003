package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fkhayef/eventcheckin/pkg/response"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// PrincipalKey is the context key for the authenticated principal
	PrincipalKey ContextKey = "principal"
)

// Role of an authenticated principal
type Role string

const (
	RoleStudent Role = "student"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Principal is an authenticated actor
type Principal struct {
	ID       int64
	Fullname string
	Role     Role
}

// IsStaff reports whether the principal is a manager or an admin
func (p Principal) IsStaff() bool {
	return p.Role == RoleManager || p.Role == RoleAdmin
}

// TokenParser resolves a bearer token into a principal
type TokenParser interface {
	ParsePrincipal(token string) (Principal, error)
}

// Authenticate validates the bearer token and stores the principal in the
// request context
func Authenticate(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Authorization header required")
				return
			}

			// Extract token from "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			principal, err := parser.ParsePrincipal(parts[1])
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects principals whose role is not listed. It must run after
// Authenticate.
func RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r.Context())
			if !ok {
				response.Unauthorized(w, "Authentication required")
				return
			}

			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			response.Forbidden(w, "You do not have permission to perform this action")
		})
	}
}

var (
	AllowStudent = RequireRoles(RoleStudent)
	AllowManager = RequireRoles(RoleManager, RoleAdmin)
	AllowAdmin   = RequireRoles(RoleAdmin)
	AllowAnyRole = RequireRoles(RoleStudent, RoleManager, RoleAdmin)
)

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetPrincipal extracts the principal from the request context
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(Principal)
	return p, ok
}

// GetUserID extracts the authenticated principal's ID from the request context
func GetUserID(ctx context.Context) (int64, bool) {
	p, ok := GetPrincipal(ctx)
	return p.ID, ok
}
