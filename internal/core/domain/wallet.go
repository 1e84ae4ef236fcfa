package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a wallet transaction was funded.
type PaymentMethod string

const (
	PaymentMethodPhonePe      PaymentMethod = "phonepe"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodOther        PaymentMethod = "other"
)

// WalletTxStatus represents the lifecycle state of a wallet transaction.
type WalletTxStatus string

const (
	WalletTxStatusPending   WalletTxStatus = "pending"
	WalletTxStatusCompleted WalletTxStatus = "completed"
	WalletTxStatusFailed    WalletTxStatus = "failed"
	WalletTxStatusRefunded  WalletTxStatus = "refunded"
)

// IsTerminal returns true if no further transition is allowed.
func (s WalletTxStatus) IsTerminal() bool {
	return s == WalletTxStatusCompleted ||
		s == WalletTxStatusFailed ||
		s == WalletTxStatusRefunded
}

// WalletTxType is the direction of a wallet transaction.
type WalletTxType string

const (
	WalletTxTypeTopup      WalletTxType = "topup"
	WalletTxTypeWithdrawal WalletTxType = "withdrawal"
)

// WalletTransaction is a merchant wallet movement settled through the payment
// gateway. ID doubles as the gateway correlation id.
type WalletTransaction struct {
	ID                    uuid.UUID       `json:"id"`
	MerchantID            uuid.UUID       `json:"merchant_id"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	PaymentMethod         PaymentMethod   `json:"payment_method"`
	Type                  WalletTxType    `json:"type"`
	Status                WalletTxStatus  `json:"status"`
	ExternalTransactionID *string         `json:"external_transaction_id,omitempty"`
	Description           string          `json:"description"`
	GatewayPayload        json.RawMessage `json:"-"`
	CreditApplied         bool            `json:"-"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *WalletTransaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// NeedsCredit is true for a completed top-up whose balance credit has not
// been applied yet.
func (t *WalletTransaction) NeedsCredit() bool {
	return t.Type == WalletTxTypeTopup &&
		t.Status == WalletTxStatusCompleted &&
		!t.CreditApplied
}

// CorrelationID is the reference the gateway knows this transaction by.
func (t *WalletTransaction) CorrelationID() string {
	return t.ID.String()
}
