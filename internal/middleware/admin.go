package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/misbot/backend/internal/apperr"
)

// AdminKeyHeader carries the operator key for /admin routes.
const AdminKeyHeader = "X-Admin-Key"

// AdminKey compares the presented key with a bcrypt hash. An empty hash
// disables the admin routes.
func AdminKey(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AdminKeyHeader)
			if hash == "" || key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
				writeError(w, apperr.New(apperr.CodeUnauthorized, "admin key required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
