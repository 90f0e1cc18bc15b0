package middleware

import (
	"net/http"

	"github.com/terakoya-app/terakoya/internal/auth"
)

// Authenticate validates the session cookie when present and attaches
// the session to the request context. Requests without a valid cookie
// pass through anonymous; handlers that need identity decide for
// themselves, since entitlement checks serve anonymous learners too.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.CookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			accountID, email, err := auth.ParseToken(secret, cookie.Value)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.WithSession(r.Context(), auth.Session{AccountID: accountID, Email: email})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.AccountID(r.Context()) == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
