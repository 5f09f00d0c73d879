package middleware

import (
	"net/http"
	"strings"

	"github.com/larderhq/larder/internal/dashboard/handler"
	"github.com/larderhq/larder/internal/dashboard/token"
)

// RequireToken validates the Authorization bearer token and populates the
// user ID in the request context.
func RequireToken(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := bearerUserID(r, secret)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}

			ctx := handler.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerUserID(r *http.Request, secret []byte) (int64, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return 0, false
	}

	userID, err := token.Parse(strings.TrimSpace(strings.TrimPrefix(header, prefix)), secret)
	if err != nil {
		return 0, false
	}
	return userID, true
}
