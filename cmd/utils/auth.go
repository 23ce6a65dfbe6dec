package utils

import (
	"crypto/subtle"
	"log"
	"net/http"
)

// AdminSecretHeader carries the shared admin secret on privileged calls
const AdminSecretHeader = "X-Admin-Secret"

// AdminAuthMiddleware gates privileged routes behind a shared secret.
// The secret is loaded once at startup and injected here; an empty secret
// means the server is misconfigured and every privileged call is refused
// with a 500 rather than silently allowed. Comparison is constant-time.
func AdminAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				log.Println("Admin secret is not configured, refusing privileged request")
				http.Error(w, "Server configuration error", http.StatusInternalServerError)
				return
			}

			provided := r.Header.Get(AdminSecretHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
