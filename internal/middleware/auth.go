// File: internal/middleware/auth.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/mostakin5290/discord-client/internal/auth"
)

type contextKey string

const UserIDKey contextKey = "userID"

// NewJWTMiddleware creates middleware to validate the bearer token on the
// Authorization header.
func NewJWTMiddleware(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				log.Printf("[AuthMiddleware] Missing bearer token")
				http.Error(w, "missing credentials", http.StatusUnauthorized)
				return
			}

			userID, err := auth.ValidateToken(strings.TrimPrefix(header, "Bearer "), secretKey)
			if err != nil {
				log.Printf("[AuthMiddleware] Invalid token: %v", err)
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user from a request context.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
