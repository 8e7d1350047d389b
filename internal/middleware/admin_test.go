package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("ops-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		hash string
		key  string
		want int
	}{
		{"correct key", string(hash), "ops-key", http.StatusOK},
		{"wrong key", string(hash), "guess", http.StatusUnauthorized},
		{"no key", string(hash), "", http.StatusUnauthorized},
		{"admin disabled", "", "ops-key", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.key != "" {
				req.Header.Set(AdminKeyHeader, tc.key)
			}
			rec := httptest.NewRecorder()
			AdminKey(tc.hash)(okHandler).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
