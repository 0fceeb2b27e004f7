package shield

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BearerAuth returns middleware that requires an Authorization bearer
// token matching the given bcrypt hash. An empty hash disables
// authentication. Health checks are always allowed through.
func BearerAuth(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hash == "" || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
