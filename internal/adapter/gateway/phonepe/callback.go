package phonepe

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strings"

	"merchant-wallet/internal/core/ports"
	"merchant-wallet/pkg/apperror"
)

// CallbackVerifier checks the Authorization header PhonePe sends on
// server-to-server callbacks: hex(sha256("username:password")) for the
// credentials configured on the merchant dashboard.
type CallbackVerifier struct {
	expected []byte
}

// NewCallbackVerifier builds a verifier for the configured callback
// credentials. Empty credentials reject every callback.
func NewCallbackVerifier(username, password string) *CallbackVerifier {
	if username == "" || password == "" {
		return &CallbackVerifier{}
	}
	sum := sha256.Sum256([]byte(username + ":" + password))
	return &CallbackVerifier{expected: []byte(hex.EncodeToString(sum[:]))}
}

type callbackBody struct {
	Event   string `json:"event"`
	Type    string `json:"type"`
	Payload struct {
		OrderID         string `json:"orderId"`
		MerchantOrderID string `json:"merchantOrderId"`
		State           string `json:"state"`
	} `json:"payload"`
}

// ParseCallback authenticates a callback and extracts the merchant order id.
func (v *CallbackVerifier) ParseCallback(authorization string, body []byte) (*ports.GatewayCallback, error) {
	if !v.authorized(authorization) {
		return nil, apperror.ErrInvalidCallbackAuth()
	}

	var cb callbackBody
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, apperror.Validation("Invalid callback payload")
	}
	if cb.Payload.MerchantOrderID == "" {
		return nil, apperror.Validation("Callback payload missing merchantOrderId")
	}

	event := cb.Event
	if event == "" {
		event = cb.Type
	}
	return &ports.GatewayCallback{
		Event:         event,
		CorrelationID: cb.Payload.MerchantOrderID,
		State:         mapState(cb.Payload.State),
	}, nil
}

func (v *CallbackVerifier) authorized(header string) bool {
	if len(v.expected) == 0 {
		return false
	}
	got := strings.ToLower(strings.TrimSpace(header))
	got = strings.TrimPrefix(got, "sha256 ")
	return subtle.ConstantTimeCompare([]byte(got), v.expected) == 1
}
