package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/misbot/backend/internal/apperr"
	"github.com/misbot/backend/internal/auth"
	"github.com/misbot/backend/internal/handlers"
)

type denyAll struct{}

func (denyAll) ValidateToken(context.Context, string) (auth.Identity, error) {
	return auth.Identity{}, apperr.New(apperr.CodeUnauthorized, "invalid session token")
}

func (denyAll) AuthenticateInitData(context.Context, string) (auth.Identity, error) {
	return auth.Identity{}, apperr.New(apperr.CodeInvalidSignature, "invalid init data")
}

func newTestRouter(t *testing.T, adminHash string) http.Handler {
	t.Helper()
	return New(&handlers.Handler{}, Options{Authenticator: denyAll{}, AdminKeyHash: adminHash})
}

func serve(h http.Handler, method, path string, header map[string]string) int {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRouter_Health(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(newTestRouter(t, ""), http.MethodGet, "/health", nil))
}

func TestRouter_ProtectedRoutesRequireCredentials(t *testing.T) {
	r := newTestRouter(t, "")
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/me"},
		{http.MethodPut, "/api/v1/me/profile"},
		{http.MethodPost, "/api/v1/tap"},
		{http.MethodPost, "/api/v1/wallets"},
		{http.MethodGet, "/api/v1/leaderboard"},
		{http.MethodPost, "/api/v1/rewards/claim"},
		{http.MethodPost, "/api/v1/rewards/native/claim"},
		{http.MethodGet, "/api/v1/rewards/native/eligibility"},
		{http.MethodGet, "/api/v1/rewards/claims"},
	}
	for _, rt := range routes {
		assert.Equal(t, http.StatusUnauthorized, serve(r, rt.method, rt.path, nil), rt.path)
	}
	assert.Equal(t, http.StatusForbidden,
		serve(r, http.MethodGet, "/api/v1/me", map[string]string{"X-Telegram-Init-Data": "hash=bad"}))
}

func TestRouter_MethodMismatch(t *testing.T) {
	r := newTestRouter(t, "")
	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodGet, "/api/v1/tap", nil))
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/v1/nope", nil))
}

func TestRouter_AdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("operator"), bcrypt.MinCost)
	assert.NoError(t, err)
	r := newTestRouter(t, string(hash))

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/admin/claims/pending", nil))
	assert.Equal(t, http.StatusUnauthorized,
		serve(r, http.MethodGet, "/api/v1/admin/claims/pending", map[string]string{"X-Admin-Key": "guess"}))
}
