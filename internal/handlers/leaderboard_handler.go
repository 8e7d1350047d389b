package handlers

import (
	"net/http"

	"github.com/misbot/backend/internal/models"
)

type standing struct {
	DisplayName string `json:"display_name"`
	Rank        int64  `json:"rank"`
	Points      int64  `json:"points"`
}

type leaderboardResponse struct {
	Top []models.LeaderboardEntry `json:"top"`
	Me  standing                  `json:"me"`
}

// Leaderboard handles GET /api/v1/leaderboard?limit=.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	top, err := h.Board.TopN(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	acc, err := h.Accounts.GetOrCreate(r.Context(), id.AccountID, id.DisplayName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.Ranks.Rank(r.Context(), id.AccountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Top: top,
		Me:  standing{DisplayName: acc.DisplayName, Rank: st.Rank, Points: st.Points},
	})
}
