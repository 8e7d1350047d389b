package handlers

import (
	"net/http"

	"github.com/misbot/backend/internal/auth"
	"github.com/misbot/backend/internal/models"
	"github.com/misbot/backend/internal/validation"
)

// --- POST /api/v1/auth/telegram ---

type telegramAuthRequest struct {
	InitData string `json:"init_data"`
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt string          `json:"expires_at"`
	Account   *models.Account `json:"account"`
}

func (h *Handler) TelegramAuth(w http.ResponseWriter, r *http.Request) {
	var req telegramAuthRequest
	if err := h.decode(w, r, validation.AuthTelegram, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.Sessions.AuthenticateInitData(r.Context(), req.InitData)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	acc, err := h.Accounts.GetOrCreate(r.Context(), id.AccountID, id.DisplayName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	token, exp, err := h.Sessions.IssueToken(auth.Identity{AccountID: acc.ID, DisplayName: acc.DisplayName})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, ExpiresAt: exp.UTC().Format(timeLayout), Account: acc})
}

// --- GET /api/v1/me ---

type meResponse struct {
	*models.Account
	Wallets []*models.LinkedAddress `json:"wallets"`
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	acc, err := h.Accounts.GetOrCreate(r.Context(), id.AccountID, id.DisplayName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	wallets, err := h.Addresses.ListByAccount(r.Context(), id.AccountID)
	if err != nil {
		h.writeError(w, r, storeErr(err, "list wallets"))
		return
	}
	if wallets == nil {
		wallets = []*models.LinkedAddress{}
	}
	writeJSON(w, http.StatusOK, meResponse{Account: acc, Wallets: wallets})
}

// --- PUT /api/v1/me/profile ---

type profileRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req profileRequest
	if err := h.decode(w, r, validation.ProfileUpdate, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.Accounts.GetOrCreate(r.Context(), id.AccountID, id.DisplayName); err != nil {
		h.writeError(w, r, err)
		return
	}
	acc, err := h.Accounts.UpdateDisplayName(r.Context(), id.AccountID, req.DisplayName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// --- POST /api/v1/wallets ---

type connectWalletRequest struct {
	Chain   models.Chain `json:"chain"`
	Address string       `json:"address"`
}

func (h *Handler) ConnectWallet(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req connectWalletRequest
	if err := h.decode(w, r, validation.ConnectWallet, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !models.SupportedChains[req.Chain] {
		h.writeError(w, r, invalidInput("unsupported chain %q", req.Chain))
		return
	}
	if _, err := h.Accounts.GetOrCreate(r.Context(), id.AccountID, id.DisplayName); err != nil {
		h.writeError(w, r, err)
		return
	}
	link := &models.LinkedAddress{AccountID: id.AccountID, Chain: req.Chain, Address: trim(req.Address)}
	if err := h.Addresses.Upsert(r.Context(), link); err != nil {
		h.writeError(w, r, storeErr(err, "link wallet"))
		return
	}
	h.logger().Info("wallet linked", "account_id", id.AccountID, "chain", link.Chain)
	writeJSON(w, http.StatusOK, link)
}
