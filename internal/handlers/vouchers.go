package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"missionrewards/internal/models"
	"missionrewards/internal/services"
)

type CatalogService interface {
	ListVouchers(ctx context.Context) ([]models.Voucher, error)
	GetVoucher(ctx context.Context, id int64) (*models.Voucher, error)
}

// Redeemer spends points. Implemented by services.PointsLedger.
type Redeemer interface {
	RedeemForVoucher(ctx context.Context, userID, voucherID int64) (*services.VoucherRedemption, error)
	RedeemForCash(ctx context.Context, userID int64, req services.CashRequest) (*services.CashRedemption, error)
}

type VoucherHandler struct {
	catalog CatalogService
	ledger  Redeemer
	logger  *zap.Logger
}

func NewVoucherHandler(catalog CatalogService, ledger Redeemer, logger *zap.Logger) *VoucherHandler {
	return &VoucherHandler{catalog: catalog, ledger: ledger, logger: logger}
}

func (h *VoucherHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.ListVouchers(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]VoucherDTO, 0, len(list))
	for _, v := range list {
		out = append(out, ToVoucherDTO(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Active vouchers retrieved successfully.",
		"vouchers": out,
	})
}

func (h *VoucherHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Voucher not found.")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v, err := h.catalog.GetVoucher(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Voucher details retrieved successfully.",
		"voucher": ToVoucherDTO(*v),
	})
}

type exchangeVoucherRequest struct {
	VoucherID int64 `json:"voucher_id" validate:"required,gt=0"`
}

// Exchange godoc
// @Summary Exchange points for a voucher
// @Tags vouchers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body exchangeVoucherRequest true "Voucher to redeem"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} errorResponse "Insufficient points"
// @Failure 404 {object} errorResponse
// @Failure 422 {object} errorResponse
// @Router /vouchers/exchange [post]
func (h *VoucherHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeVoucherRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.ledger.RedeemForVoucher(r.Context(), currentUser(r), req.VoucherID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":          "Voucher exchanged successfully. Here is your token:",
		"voucher_exchange": ToVoucherExchangeDTO(res.Exchange),
		"voucher_token":    res.Exchange.Token,
		"current_points":   res.CurrentPoints,
	})
}
