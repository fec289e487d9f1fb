package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/wordweave/wordweave/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ClaimsContextKey is the key for storing access claims in context
	ClaimsContextKey contextKey = "claims"
)

// Middleware validates access tokens and injects claims into the request
// context. The token is taken from the Authorization header or, failing
// that, the access-token cookie.
func Middleware(codec *Codec) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				http.Error(w, "missing credentials", http.StatusUnauthorized)
				return
			}

			claims, err := codec.Verify(tokenString)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromRequest extracts access claims from the request context.
func ClaimsFromRequest(r *http.Request) *models.AccessClaims {
	claims, ok := r.Context().Value(ClaimsContextKey).(*models.AccessClaims)
	if !ok {
		return nil
	}
	return claims
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	if token, err := GetAccessTokenCookie(r); err == nil {
		return token
	}
	return ""
}
