package middleware

import (
	"context"
	"net/http"
	"strings"

	"collabdesk/internal/auth"
)

const identityKey contextKey = "identity"

// AuthMiddleware verifies the bearer token on every request and stores the
// resulting identity in the request context. Requests without a valid token
// are rejected before any handler runs.
func AuthMiddleware(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := BearerToken(r)
			if credential == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			identity, err := verifier.Verify(credential)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the credential from the Authorization header, or from
// the `token` query parameter for websocket handshakes that cannot set
// headers.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// GetIdentity extracts the verified identity from context. Returns nil if
// the request did not pass AuthMiddleware.
func GetIdentity(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityKey).(*auth.Identity)
	return identity
}
