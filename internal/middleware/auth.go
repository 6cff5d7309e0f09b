package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/taskflow/taskflow-go/internal/crypto"
)

// AccessTokenCookie carries the short-lived access token on every request.
const AccessTokenCookie = "accessToken"

// CodeTokenExpired tells clients that a silent refresh may recover the request.
const CodeTokenExpired = "TOKEN_EXPIRED"

type contextKey string

const userIDKey contextKey = "userID"

// AccessVerifier validates an access token and returns the user id it carries.
type AccessVerifier interface {
	VerifyAccessToken(token string) (int64, error)
}

// CookieAuth returns middleware that validates the access token cookie and
// stores the user id in the request context. It never touches the store.
func CookieAuth(tokens AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AccessTokenCookie)
			if err != nil || cookie.Value == "" {
				writeMessage(w, http.StatusUnauthorized, "No token, authorization denied")
				return
			}

			userID, err := tokens.VerifyAccessToken(cookie.Value)
			if err != nil {
				if errors.Is(err, crypto.ErrTokenExpired) {
					writeJSON(w, http.StatusUnauthorized, map[string]string{
						"message": "Token expired",
						"code":    CodeTokenExpired,
					})
					return
				}
				writeMessage(w, http.StatusUnauthorized, "Token is not valid")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
