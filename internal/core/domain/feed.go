package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeedTypeWalletTopup is the synthetic feed type for wallet top-ups.
const FeedTypeWalletTopup = "wallet_topup"

// FeedFilterAll disables a type or status filter.
const FeedFilterAll = "all"

// FeedRecord is the normalized shape of every row in the merchant
// transaction feed, whichever table it came from.
type FeedRecord struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	ReferenceID string          `json:"reference_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// FeedFromLedger normalizes a ledger transaction.
func FeedFromLedger(tx *LedgerTransaction) FeedRecord {
	return FeedRecord{
		ID:          tx.ID,
		Type:        string(tx.Type),
		Amount:      tx.Amount,
		Status:      string(tx.Status),
		Description: tx.Description,
		ReferenceID: tx.Reference,
		CreatedAt:   tx.CreatedAt,
	}
}

// FeedFromWalletTx normalizes a wallet top-up. The reference is the gateway
// transaction id once known, otherwise the wallet transaction id.
func FeedFromWalletTx(tx *WalletTransaction) FeedRecord {
	ref := tx.ID.String()
	if tx.ExternalTransactionID != nil && *tx.ExternalTransactionID != "" {
		ref = *tx.ExternalTransactionID
	}
	desc := tx.Description
	if desc == "" {
		desc = fmt.Sprintf("Wallet Top-up via %s", paymentMethodLabel(tx.PaymentMethod))
	}
	return FeedRecord{
		ID:          tx.ID,
		Type:        FeedTypeWalletTopup,
		Amount:      tx.Amount,
		Status:      string(tx.Status),
		Description: desc,
		ReferenceID: ref,
		CreatedAt:   tx.CreatedAt,
	}
}

func paymentMethodLabel(m PaymentMethod) string {
	switch m {
	case PaymentMethodPhonePe:
		return "PhonePe"
	case PaymentMethodBankTransfer:
		return "Bank Transfer"
	default:
		return "Other"
	}
}

// FeedFilter selects which families and rows the feed returns.
type FeedFilter struct {
	Page     int
	PageSize int
	Search   string
	Type     string
	Status   string
}

// Normalize lowercases the type and status tags and defaults empty ones to all.
func (f FeedFilter) Normalize() FeedFilter {
	f.Search = strings.TrimSpace(f.Search)
	f.Type = strings.ToLower(strings.TrimSpace(f.Type))
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	if f.Type == "" {
		f.Type = FeedFilterAll
	}
	if f.Status == "" {
		f.Status = FeedFilterAll
	}
	return f
}

// Validate checks the type and status tags.
func (f FeedFilter) Validate() error {
	if f.Type != FeedFilterAll && f.Type != FeedTypeWalletTopup && !LedgerType(f.Type).IsValid() {
		return fmt.Errorf("unknown transaction type %q", f.Type)
	}
	if f.Status != FeedFilterAll && !LedgerStatus(f.Status).IsValid() {
		return fmt.Errorf("unknown transaction status %q", f.Status)
	}
	return nil
}

// IncludesLedger reports whether ledger transactions are part of the feed.
func (f FeedFilter) IncludesLedger() bool {
	return f.Type != FeedTypeWalletTopup
}

// IncludesWallet reports whether wallet top-ups are part of the feed.
func (f FeedFilter) IncludesWallet() bool {
	return f.Type == FeedFilterAll || f.Type == FeedTypeWalletTopup
}

// LedgerType returns the ledger type to filter on, or nil for all.
func (f FeedFilter) LedgerType() *LedgerType {
	if f.Type == FeedFilterAll || f.Type == FeedTypeWalletTopup {
		return nil
	}
	t := LedgerType(f.Type)
	return &t
}

// StatusFilter returns the status to filter on, or nil for all.
func (f FeedFilter) StatusFilter() *string {
	if f.Status == FeedFilterAll {
		return nil
	}
	s := f.Status
	return &s
}
