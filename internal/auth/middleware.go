package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type for context keys in this package, so
// no other package can read or shadow the values stored under them.
type contextKey string

const userIDKey contextKey = "userID"

// SessionCookieName is the HttpOnly cookie that carries the session JWT.
const SessionCookieName = "token"

// RequireAuth enforces authentication on protected routes.
//
// It reads the JWT from the session cookie, validates it, and stores the
// userID in the request context. If the token is missing or invalid, it
// returns 401 and stops the chain.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				http.Error(w, `{"error":"unauthenticated","message":"Not authenticated"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts the user identity if a valid token is present but
// never blocks the request. Used on routes that return reduced data for
// anonymous visitors (character lists, the viewer endpoint) instead of 401.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil && userID != "" {
				ctx := context.WithValue(r.Context(), userIDKey, userID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context. Returns ("", false) when the request is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}

	return tokens.Validate(cookie.Value)
}
