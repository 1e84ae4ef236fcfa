package ports

import (
	"context"
	"encoding/json"
	"errors"

	"merchant-wallet/internal/core/domain"
)

// ErrGatewayRejected matches gateway errors where the provider answered and
// refused the request, as opposed to being unreachable.
var ErrGatewayRejected = errors.New("payment gateway rejected the request")

// PaymentGateway is the external payment provider. Amounts cross this
// boundary in minor units (paise).
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, session PaymentSession) (*PaymentRedirect, error)
	GetStatus(ctx context.Context, correlationID string) (*GatewayStatus, error)
}

// PaymentSession asks the gateway to start collecting a payment.
type PaymentSession struct {
	CorrelationID string
	AmountMinor   int64
	RedirectURL   string
}

// PaymentRedirect is where the payer is sent to complete the payment.
type PaymentRedirect struct {
	RedirectURL    string
	GatewayOrderID string
	RawPayload     json.RawMessage
}

// GatewayStatus is the gateway's authoritative view of a payment.
type GatewayStatus struct {
	State                 domain.GatewayState
	ExternalTransactionID string
	AmountMinor           int64 // zero when the gateway omits the amount
	Message               string
	RawPayload            json.RawMessage
}

// CallbackVerifier authenticates and decodes a server-to-server gateway
// notification.
type CallbackVerifier interface {
	ParseCallback(authorization string, body []byte) (*GatewayCallback, error)
}

// GatewayCallback is a verified gateway notification. It only tells us which
// payment to reconcile; the state is re-read from the gateway.
type GatewayCallback struct {
	Event         string
	CorrelationID string
	State         domain.GatewayState
}
