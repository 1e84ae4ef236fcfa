package domain

import (
	"github.com/google/uuid"
)

// GatewayState is the payment gateway's view of an order.
type GatewayState string

const (
	GatewayStatePending   GatewayState = "PENDING"
	GatewayStateCompleted GatewayState = "COMPLETED"
	GatewayStateFailed    GatewayState = "FAILED"
)

// IsTerminal returns true if the gateway will not change the state again.
func (s GatewayState) IsTerminal() bool {
	return s == GatewayStateCompleted || s == GatewayStateFailed
}

// ReconcileResult is what a reconcile call reports back to the caller.
type ReconcileResult struct {
	TransactionID uuid.UUID          `json:"transaction_id"`
	Status        WalletTxStatus     `json:"status"`
	Message       string             `json:"message"`
	Transaction   *WalletTransaction `json:"-"`
}

// BuildReconcileCacheKey is the cache key for a finalized reconcile result.
func BuildReconcileCacheKey(transactionID uuid.UUID) string {
	return "reconcile:" + transactionID.String()
}
