package middleware

import (
	"context"
	"net/http"
	"strings"
)

// TokenVerifier validates a bearer token and returns the user id it belongs
// to. The identity package provides the JWT implementation.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth rejects requests without a valid bearer token and stores the
// verified user id on the request context.
func RequireAuth(verifier TokenVerifier) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			userID, err := verifier.Verify(tokenString)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next(w, r.WithContext(ctx))
		}
	}
}

// UserID returns the authenticated user id stored by RequireAuth, or "".
func UserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}
