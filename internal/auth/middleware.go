package auth

import (
	"context"
	"net/http"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "session"

// contextKey is an unexported type for this package's context keys, so no
// other package can read or shadow the values stored under them.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth guards routes that only make sense for a signed-in user.
//
// It reads the session cookie, validates the token, and stores the userID
// in the request context. Anonymous or invalid sessions are redirected to
// /login before any handler logic runs — these are browser-facing page
// routes, so a redirect beats a bare 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := sessionUserID(r, tokens)
			if err != nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts the user identity when a valid session is present
// but never blocks the request. The landing page uses it to decide between
// the welcome and home views.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := sessionUserID(r, tokens); err == nil && userID != "" {
				ctx := context.WithValue(r.Context(), userIDKey, userID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the signed-in user's ID, or ("", false) when
// the request is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// sessionUserID reads and validates the session cookie.
// http.ErrNoCookie from r.Cookie simply means anonymous.
func sessionUserID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
