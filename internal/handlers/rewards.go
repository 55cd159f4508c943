package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"missionrewards/internal/services"
)

type RewardHandler struct {
	ledger Redeemer
	logger *zap.Logger
}

func NewRewardHandler(ledger Redeemer, logger *zap.Logger) *RewardHandler {
	return &RewardHandler{ledger: ledger, logger: logger}
}

type exchangeCashRequest struct {
	Amount int64  `json:"amount" validate:"required"`
	Email  string `json:"email" validate:"required,email,max=255"`
	Phone  string `json:"phone" validate:"required,max=20"`
}

// Exchange godoc
// @Summary Exchange points for e-wallet balance
// @Description Requires ceil(amount * 0.1) points; the minimum amount is 10000
// @Tags rewards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body exchangeCashRequest true "Payout details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} errorResponse "Insufficient points"
// @Failure 422 {object} errorResponse
// @Router /rewards/exchange [post]
func (h *RewardHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeCashRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.ledger.RedeemForCash(r.Context(), currentUser(r), services.CashRequest{
		Amount: req.Amount,
		Email:  req.Email,
		Phone:  req.Phone,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":        "Points successfully exchanged for e-wallet balance.",
		"reward":         ToRewardDTO(res.Reward),
		"current_points": res.CurrentPoints,
	})
}
