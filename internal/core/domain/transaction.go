package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerType tags a generic ledger record.
type LedgerType string

const (
	LedgerTypeDeposit          LedgerType = "deposit"
	LedgerTypeWithdrawal       LedgerType = "withdrawal"
	LedgerTypeCouponRedemption LedgerType = "coupon_redemption"
	LedgerTypeCommission       LedgerType = "commission"
)

// IsValid reports whether t is a known ledger type.
func (t LedgerType) IsValid() bool {
	switch t {
	case LedgerTypeDeposit, LedgerTypeWithdrawal, LedgerTypeCouponRedemption, LedgerTypeCommission:
		return true
	}
	return false
}

// LedgerStatus represents the state of a ledger record.
type LedgerStatus string

const (
	LedgerStatusCompleted LedgerStatus = "completed"
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusFailed    LedgerStatus = "failed"
)

// IsValid reports whether s is a known ledger status.
func (s LedgerStatus) IsValid() bool {
	switch s {
	case LedgerStatusCompleted, LedgerStatusPending, LedgerStatusFailed:
		return true
	}
	return false
}

// LedgerTransaction is a generic transaction record: deposits taken at
// onboarding, withdrawals, coupon redemptions and agent commissions. It is
// stored apart from wallet transactions.
type LedgerTransaction struct {
	ID          uuid.UUID       `json:"id"`
	MerchantID  *uuid.UUID      `json:"merchant_id,omitempty"`
	AgentID     *uuid.UUID      `json:"agent_id,omitempty"`
	Type        LedgerType      `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Status      LedgerStatus    `json:"status"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	CreatedAt   time.Time       `json:"created_at"`
}
