package handlers

import (
	"net/http"
	"time"

	"github.com/misbot/backend/internal/models"
	"github.com/misbot/backend/internal/rewards"
	"github.com/misbot/backend/internal/validation"
)

const maxPendingListed = 100

type claimRequest struct {
	PayoutAddress string `json:"payout_address"`
	PointAmount   int64  `json:"point_amount"`
}

// ClaimToken handles POST /api/v1/rewards/claim (jetton mint).
func (h *Handler) ClaimToken(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, models.RewardKindToken)
}

// ClaimNative handles POST /api/v1/rewards/native/claim (TON transfer).
func (h *Handler) ClaimNative(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, models.RewardKindNative)
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request, kind models.RewardKind) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req claimRequest
	if err := h.decode(w, r, validation.Claim, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Rewards.Claim(r.Context(), rewards.ClaimRequest{
		AccountID:     id.AccountID,
		Kind:          kind,
		PayoutAddress: req.PayoutAddress,
		PointAmount:   req.PointAmount,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// NativeEligibility handles GET /api/v1/rewards/native/eligibility.
func (h *Handler) NativeEligibility(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.Accounts.GetOrCreate(r.Context(), id.AccountID, id.DisplayName); err != nil {
		h.writeError(w, r, err)
		return
	}
	el, err := h.Rewards.Eligibility(r.Context(), id.AccountID, models.RewardKindNative)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

// ListClaims handles GET /api/v1/rewards/claims?limit=.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", rewards.DefaultHistoryLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	list, err := h.Rewards.History(r.Context(), id.AccountID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": list})
}

// ListPendingClaims handles GET /api/v1/admin/claims/pending?older_than=.
func (h *Handler) ListPendingClaims(w http.ResponseWriter, r *http.Request) {
	olderThan := h.StaleAfter
	if v := r.URL.Query().Get("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			h.writeError(w, r, invalidInput("older_than must be a non-negative duration like 10m"))
			return
		}
		olderThan = d
	}
	list, err := h.Pending.ListPendingBefore(r.Context(), time.Now().Add(-olderThan), maxPendingListed)
	if err != nil {
		h.writeError(w, r, storeErr(err, "list pending claims"))
		return
	}
	if list == nil {
		list = []*models.RewardClaim{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": list, "older_than": olderThan.String()})
}
