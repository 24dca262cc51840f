package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mgoubin/companion/internal/credential"
)

// BearerAuth guards a route group with the local API token.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnsureAPIToken returns the local serve API token, generating and
// persisting one on first use. This token is unrelated to the Intra bearer
// token; it only guards the loopback API.
func EnsureAPIToken(store credential.Store) (string, error) {
	token, ok, err := store.Get(credential.APITokenKey)
	if err != nil {
		return "", fmt.Errorf("reading api token: %w", err)
	}
	if ok && token != "" {
		return token, nil
	}

	token = uuid.NewString()
	if err := store.Set(credential.APITokenKey, token); err != nil {
		return "", fmt.Errorf("storing api token: %w", err)
	}
	return token, nil
}
