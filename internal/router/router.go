package router

import (
	"log/slog"
	"net/http"

	"github.com/misbot/backend/internal/handlers"
	"github.com/misbot/backend/internal/middleware"
)

type Options struct {
	Authenticator middleware.Authenticator
	// Limiter may be nil, which disables rate limiting.
	Limiter       middleware.Limiter
	AdminKeyHash  string
	Logger        *slog.Logger
}

// New returns an http.Handler that serves the API under /api/v1 and the
// liveness probe at /health.
//
// Chains:
//
//	/api/v1/auth/telegram   global limit -> handler
//	/api/v1/...             global limit -> authenticate -> handler
//	/api/v1/tap             global limit -> authenticate -> tap limit -> handler
//	/api/v1/admin/...       global limit -> admin key -> handler
func New(h *handlers.Handler, opts Options) http.Handler {
	const base = "/api/v1"

	authed := middleware.Authenticate(opts.Authenticator)
	tapLimit := middleware.RateLimit(opts.Limiter, middleware.TapRule, opts.Logger)
	admin := middleware.AdminKey(opts.AdminKeyHash)

	api := http.NewServeMux()
	api.HandleFunc("POST "+base+"/auth/telegram", h.TelegramAuth)

	api.Handle("GET "+base+"/me", authed(http.HandlerFunc(h.GetMe)))
	api.Handle("PUT "+base+"/me/profile", authed(http.HandlerFunc(h.UpdateProfile)))
	api.Handle("POST "+base+"/tap", authed(tapLimit(http.HandlerFunc(h.Tap))))
	api.Handle("POST "+base+"/wallets", authed(http.HandlerFunc(h.ConnectWallet)))
	api.Handle("GET "+base+"/leaderboard", authed(http.HandlerFunc(h.Leaderboard)))

	api.Handle("POST "+base+"/rewards/claim", authed(http.HandlerFunc(h.ClaimToken)))
	api.Handle("POST "+base+"/rewards/native/claim", authed(http.HandlerFunc(h.ClaimNative)))
	api.Handle("GET "+base+"/rewards/native/eligibility", authed(http.HandlerFunc(h.NativeEligibility)))
	api.Handle("GET "+base+"/rewards/claims", authed(http.HandlerFunc(h.ListClaims)))

	api.Handle("GET "+base+"/admin/claims/pending", admin(http.HandlerFunc(h.ListPendingClaims)))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.Health)
	mux.Handle("/api/", middleware.RateLimit(opts.Limiter, middleware.GlobalRule, opts.Logger)(api))
	return mux
}
