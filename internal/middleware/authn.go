package middleware

import (
	"net/http"
	"strings"

	"github.com/pacelog/pacelog/internal/auth"
)

// Authenticate validates a Bearer token when one is present and stores the
// authenticated user ID in the request context. Requests without an
// Authorization header pass through unauthenticated; handlers that require a
// viewer reject those themselves. A present-but-invalid token is rejected
// here with 401 so expired credentials never masquerade as anonymous traffic.
func Authenticate(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				// Mutate in place so the logging middleware upstream sees
				// the error code on its own copy of the request.
				*r = *r.WithContext(SetErrorCode(r.Context(), "auth_failed"))
				http.Error(w, "Invalid Authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				*r = *r.WithContext(SetErrorCode(r.Context(), "auth_failed"))
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
