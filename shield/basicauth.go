package shield

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash of a password, suitable for
// storing in configuration for BasicAuth.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("shield: hash password: %w", err)
	}
	return string(hash), nil
}

// BasicAuth returns middleware enforcing HTTP basic auth against a
// single user and a bcrypt password hash. bcrypt comparison is already
// constant-time; the username check uses subtle to match.
func BasicAuth(username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="constat"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
