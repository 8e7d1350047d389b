package handlers

import (
	"errors"
	"net/http"

	"github.com/misbot/backend/internal/apperr"
	"github.com/misbot/backend/internal/validation"
)

type tapRequest struct {
	Count int `json:"count"`
}

// Tap handles POST /api/v1/tap.
func (h *Handler) Tap(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req tapRequest
	if err := h.decode(w, r, validation.Tap, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Taps.RecordTaps(r.Context(), id.AccountID, req.Count)
	if errors.Is(err, apperr.ErrNotFound) {
		// First contact through the tap endpoint.
		if _, err = h.Accounts.GetOrCreate(r.Context(), id.AccountID, id.DisplayName); err == nil {
			res, err = h.Taps.RecordTaps(r.Context(), id.AccountID, req.Count)
		}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
