package handler

import (
	"io"
	"net/http"

	"merchant-wallet/internal/adapter/http/middleware"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/pkg/apperror"
	"merchant-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CallbackHandler receives PhonePe server-to-server payment callbacks.
type CallbackHandler struct {
	verifier ports.CallbackVerifier
	topUpSvc ports.TopUpService
	log      zerolog.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(verifier ports.CallbackVerifier, topUpSvc ports.TopUpService, log zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{verifier: verifier, topUpSvc: topUpSvc, log: log}
}

// PhonePe handles POST /api/v1/payments/phonepe/callback.
//
// The callback body is only a hint: the order id it names is reconciled
// against the status API like any client poll. Orders this service does not
// know are acknowledged so the gateway stops retrying them; a gateway
// outage during reconcile answers 502 so it retries.
func (h *CallbackHandler) PhonePe(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	cb, err := h.verifier.ParseCallback(c.GetHeader("Authorization"), body)
	if err != nil {
		h.log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("rejected gateway callback")
		response.Error(c, err)
		return
	}

	txID, err := uuid.Parse(cb.CorrelationID)
	if err != nil {
		h.log.Warn().Str("merchant_order_id", cb.CorrelationID).Msg("callback for unknown order id format, acknowledging")
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Unknown order"})
		return
	}
	c.Set(middleware.CtxResourceID, txID)

	result, err := h.topUpSvc.Reconcile(c.Request.Context(), txID)
	if err != nil {
		if apperror.HasCode(err, "PAY_004") {
			h.log.Warn().Str("transaction_id", txID.String()).Msg("callback for unknown transaction, acknowledging")
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "Unknown order"})
			return
		}
		response.Error(c, err)
		return
	}

	h.log.Info().
		Str("transaction_id", txID.String()).
		Str("event", cb.Event).
		Str("status", string(result.Status)).
		Msg("gateway callback reconciled")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  result.Status,
		"message": result.Message,
	})
}
