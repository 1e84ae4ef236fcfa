package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MerchantStatus represents the approval state of a merchant account.
type MerchantStatus string

const (
	MerchantStatusPending  MerchantStatus = "pending"
	MerchantStatusApproved MerchantStatus = "approved"
	MerchantStatusRejected MerchantStatus = "rejected"
)

// IsValid reports whether s is a known merchant status.
func (s MerchantStatus) IsValid() bool {
	switch s {
	case MerchantStatusPending, MerchantStatusApproved, MerchantStatusRejected:
		return true
	}
	return false
}

// MerchantMode is how the merchant sells: online storefront or offline shop.
type MerchantMode string

const (
	MerchantModeOnline  MerchantMode = "online"
	MerchantModeOffline MerchantMode = "offline"
)

// Wallet is the money state embedded in a merchant.
//
// LockedAmount is zero exactly when MaturityDate is nil.
type Wallet struct {
	Balance      decimal.Decimal `json:"balance"`
	LockedAmount decimal.Decimal `json:"locked_amount"`
	MaturityDate *time.Time      `json:"maturity_date"`
}

// IsMatured reports whether the locked deposit can be released at now.
func (w Wallet) IsMatured(now time.Time) bool {
	return w.LockedAmount.IsPositive() &&
		w.MaturityDate != nil &&
		!w.MaturityDate.After(now)
}

// IsConsistent reports whether the locked amount and maturity date agree.
func (w Wallet) IsConsistent() bool {
	if w.Balance.IsNegative() || w.LockedAmount.IsNegative() {
		return false
	}
	if w.LockedAmount.IsZero() {
		return w.MaturityDate == nil
	}
	return w.MaturityDate != nil
}

// BankDetails are the merchant's payout account details. AccountNumberEnc
// holds the AES-GCM ciphertext; AccountNumberMasked is only filled on
// single-merchant reads.
type BankDetails struct {
	AccountName         string `json:"account_name"`
	AccountNumberEnc    string `json:"-"`
	AccountNumberMasked string `json:"account_number_masked,omitempty"`
	IFSC                string `json:"ifsc"`
}

// MaskAccountNumber keeps the last four digits of an account number.
func MaskAccountNumber(number string) string {
	const visible = 4
	if len(number) <= visible {
		return strings.Repeat("X", len(number))
	}
	return strings.Repeat("X", len(number)-visible) + number[len(number)-visible:]
}

// Merchant represents an onboarded merchant.
type Merchant struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	AgentID      uuid.UUID      `json:"agent_id"`
	BusinessName string         `json:"business_name"`
	BusinessType string         `json:"business_type"`
	Address      string         `json:"address"`
	Mode         MerchantMode   `json:"mode"`
	Status       MerchantStatus `json:"status"`
	Bank         BankDetails    `json:"bank_details"`
	Wallet       Wallet         `json:"wallet"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsApproved returns true if the merchant may transact.
func (m *Merchant) IsApproved() bool {
	return m.Status == MerchantStatusApproved
}

// MaturityFrom returns the unlock date for a deposit locked at t.
func MaturityFrom(t time.Time, lockMonths int) time.Time {
	return t.AddDate(0, lockMonths, 0)
}
