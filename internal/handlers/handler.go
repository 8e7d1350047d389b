// Package handlers serves the /api/v1 JSON surface. Identity always comes
// from middleware.Authenticate; request bodies are schema-checked first.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/misbot/backend/internal/apperr"
	"github.com/misbot/backend/internal/auth"
	"github.com/misbot/backend/internal/leaderboard"
	"github.com/misbot/backend/internal/middleware"
	"github.com/misbot/backend/internal/models"
	"github.com/misbot/backend/internal/rewards"
	"github.com/misbot/backend/internal/tapping"
	"github.com/misbot/backend/internal/validation"
)

const maxBodyBytes = 64 << 10

// Sessions exchanges init data for a session token.
type Sessions interface {
	AuthenticateInitData(ctx context.Context, initData string) (auth.Identity, error)
	IssueToken(id auth.Identity) (string, time.Time, error)
}

// Accounts is the subset of ledger.Service used here.
type Accounts interface {
	GetOrCreate(ctx context.Context, id int64, displayName string) (*models.Account, error)
	UpdateDisplayName(ctx context.Context, id int64, name string) (*models.Account, error)
}

type Addresses interface {
	Upsert(ctx context.Context, a *models.LinkedAddress) error
	ListByAccount(ctx context.Context, accountID int64) ([]*models.LinkedAddress, error)
}

type Tapper interface {
	RecordTaps(ctx context.Context, accountID int64, claimedCount int) (tapping.TapResult, error)
}

type Leaderboard interface {
	TopN(ctx context.Context, n int) ([]models.LeaderboardEntry, error)
}

type Ranker interface {
	Rank(ctx context.Context, accountID int64) (leaderboard.Standing, error)
}

type Rewards interface {
	Claim(ctx context.Context, req rewards.ClaimRequest) (*rewards.ClaimResult, error)
	History(ctx context.Context, accountID int64, limit int) ([]*models.RewardClaim, error)
	Eligibility(ctx context.Context, accountID int64, kind models.RewardKind) (*rewards.Eligibility, error)
}

// PendingClaims backs the admin audit listing.
type PendingClaims interface {
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]*models.RewardClaim, error)
}

type Handler struct {
	Sessions   Sessions
	Accounts   Accounts
	Addresses  Addresses
	Taps       Tapper
	Board      Leaderboard
	Ranks      Ranker
	Rewards    Rewards
	Pending    PendingClaims
	Validator  *validation.Validator
	StaleAfter time.Duration
	// Production hides error detail from responses.
	Production bool
	Logger     *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status and logs it. Server-side failures are
// logged at error level with the full cause.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := apperr.Response(err, !h.Production)
	attrs := []any{"method", r.Method, "path", r.URL.Path, "code", body.Code, "error", err}
	if id, ok := middleware.IdentityFromCtx(r.Context()); ok {
		attrs = append(attrs, "account_id", id.AccountID)
	}
	if status >= http.StatusInternalServerError {
		h.logger().Error("request failed", attrs...)
	} else {
		h.logger().Debug("request rejected", attrs...)
	}
	writeJSON(w, status, body)
}

// decode reads the body and validates it against the named schema.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.New(apperr.CodeInvalidInput, "request body too large")
		}
		return apperr.Wrap(apperr.CodeInvalidInput, err, "failed to read body")
	}
	return h.Validator.Decode(schema, body, dst)
}

func identity(r *http.Request) (auth.Identity, error) {
	id, ok := middleware.IdentityFromCtx(r.Context())
	if !ok {
		return auth.Identity{}, apperr.New(apperr.CodeUnauthorized, "unauthorized")
	}
	return id, nil
}

// Health handles GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
