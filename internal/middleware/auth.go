package middleware

import (
	"context"
	"net/http"
	"strings"

	"opsboard-backend/internal/auth"
	"opsboard-backend/internal/models"
)

type contextKey string

const UserIDKey contextKey = "user_id"
const EmailKey contextKey = "email"
const FullNameKey contextKey = "full_name"

// UserResolver looks up the current state of a user.
type UserResolver interface {
	ResolveUser(ctx context.Context, id int) (*models.User, error)
}

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	users      UserResolver
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, users UserResolver) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		users:      users,
	}
}

// bearerToken extracts the token from "Bearer <token>". Websocket clients
// cannot set headers, so upgrade requests may pass ?token= instead.
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			if token := r.URL.Query().Get("token"); token != "" {
				return token, ""
			}
		}
		return "", "Authorization header required"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format"
	}
	return parts[1], ""
}

// Authenticate is a middleware that validates JWT tokens and resolves the actor
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, problem := bearerToken(r)
		if problem != "" {
			writeJSONError(w, http.StatusUnauthorized, problem)
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		// Check the directory for current user status (suspensions apply immediately)
		user, err := m.users.ResolveUser(r.Context(), claims.UserID)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "User not found")
			return
		}
		if !user.IsActive {
			writeJSONError(w, http.StatusForbidden, "Account suspended. Please contact administrator.")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
		ctx = context.WithValue(ctx, EmailKey, user.Email)
		ctx = context.WithValue(ctx, FullNameKey, user.FullName)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(UserIDKey).(int)
	return userID, ok
}

// GetEmailFromContext extracts email from request context
func GetEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(EmailKey).(string)
	return email, ok
}

// WithUserID returns a context carrying userID, as Authenticate would set it.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
