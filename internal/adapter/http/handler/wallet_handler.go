package handler

import (
	"merchant-wallet/internal/adapter/http/dto"
	"merchant-wallet/internal/adapter/http/middleware"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/pkg/apperror"
	"merchant-wallet/pkg/money"
	"merchant-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles the merchant wallet and top-up endpoints.
type WalletHandler struct {
	merchantSvc ports.MerchantService
	topUpSvc    ports.TopUpService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(merchantSvc ports.MerchantService, topUpSvc ports.TopUpService) *WalletHandler {
	return &WalletHandler{merchantSvc: merchantSvc, topUpSvc: topUpSvc}
}

// GetWallet handles GET /api/v1/merchant/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrForbidden())
		return
	}

	wallet, err := h.merchantSvc.GetWallet(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toWalletResponse(*wallet))
}

// InitiateTopUp handles POST /api/v1/merchant/wallet/topup/initiate.
func (h *WalletHandler) InitiateTopUp(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrForbidden())
		return
	}

	var req dto.TopUpInitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, err := money.Parse(req.Amount.String())
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.topUpSvc.Initiate(c.Request.Context(), merchantID, amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, result.TransactionID)
	response.OK(c, dto.TopUpInitiateResponse{
		TransactionID: result.TransactionID.String(),
		RedirectURL:   result.RedirectURL,
	})
}

// VerifyTopUp handles GET /api/v1/merchant/wallet/topup/verify, the poll
// the payer's browser makes after returning from the gateway.
func (h *WalletHandler) VerifyTopUp(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrForbidden())
		return
	}

	raw := c.Query("transactionId")
	if raw == "" {
		response.Error(c, apperror.Validation("transactionId is required"))
		return
	}
	txID, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Transaction"))
		return
	}

	result, err := h.topUpSvc.ReconcileForMerchant(c.Request.Context(), merchantID, txID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, txID)
	response.OK(c, toReconcileResponse(result))
}
