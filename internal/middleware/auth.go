package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/misbot/backend/internal/apperr"
	"github.com/misbot/backend/internal/auth"
)

type contextKey string

const ctxIdentityKey contextKey = "identity"

// InitDataHeader carries raw Telegram Mini App init data.
const InitDataHeader = "X-Telegram-Init-Data"

// Authenticator is the part of auth.Service the middleware needs.
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (auth.Identity, error)
	AuthenticateInitData(ctx context.Context, initData string) (auth.Identity, error)
}

// Authenticate accepts either a Bearer session token or the init data header
// and stores the verified identity in the request context.
func Authenticate(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				id  auth.Identity
				err error
			)
			if tok := extractBearer(r); tok != "" {
				id, err = a.ValidateToken(r.Context(), tok)
			} else if initData := r.Header.Get(InitDataHeader); initData != "" {
				id, err = a.AuthenticateInitData(r.Context(), initData)
			} else {
				err = apperr.New(apperr.CodeUnauthorized, "missing credentials")
			}
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// IdentityFromCtx returns the authenticated caller. ok is false on
// unauthenticated routes.
func IdentityFromCtx(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxIdentityKey).(auth.Identity)
	return id, ok
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// writeError never includes the wrapped cause; auth failures stay opaque.
func writeError(w http.ResponseWriter, err error) {
	status, body := apperr.Response(err, false)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
